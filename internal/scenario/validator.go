package scenario

import (
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/xeipuuv/gojsonschema"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

//go:embed scenario.schema.json
var embeddedSchema []byte

// ErrSchemaUnavailable schema 缺失或无法编译
var ErrSchemaUnavailable = errors.New("scenario schema unavailable")

// Issue 单条校验结果
type Issue struct {
	Path    string `json:"path"`
	Message string `json:"message"`
	Value   any    `json:"value,omitempty"`
}

// Report 校验报告
type Report struct {
	Valid    bool    `json:"isValid"`
	Errors   []Issue `json:"errors"`
	Warnings []Issue `json:"warnings"`
}

// Validator 场景校验器：第一阶段 JSON Schema (draft-07)，第二阶段语义规则。
// 对普通非法输入只返回报告，不返回错误。
type Validator struct {
	schema *gojsonschema.Schema
	logger *zap.Logger
}

// NewValidator 编译 schema；schemaPath 为空时使用内置 schema。
// schema 文件缺失或内容损坏时返回 ErrSchemaUnavailable。
func NewValidator(schemaPath string, logger *zap.Logger) (*Validator, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	raw := embeddedSchema
	if schemaPath != "" {
		b, err := os.ReadFile(schemaPath)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrSchemaUnavailable, err)
		}
		raw = b
	}
	if len(raw) == 0 {
		return nil, fmt.Errorf("%w: empty schema", ErrSchemaUnavailable)
	}
	sl := gojsonschema.NewSchemaLoader()
	sl.Draft = gojsonschema.Draft7
	schema, err := sl.Compile(gojsonschema.NewBytesLoader(raw))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSchemaUnavailable, err)
	}
	return &Validator{schema: schema, logger: logger}, nil
}

// ValidateFile 校验场景文件
func (v *Validator) ValidateFile(path string) Report {
	data, err := os.ReadFile(path)
	if err != nil {
		b := &issues{}
		b.err("", fmt.Sprintf("read scenario: %v", err), path)
		return b.report()
	}
	return v.Validate(data, filepath.Dir(path))
}

// Validate 校验场景内容；dir 为 profile 相对路径的基准目录
func (v *Validator) Validate(data []byte, dir string) Report {
	return v.validate(data, dir, false)
}

// ValidateConfined 校验来自不可信来源的场景：profile 只能引用 dir 内的相对路径，
// 报告中不回显文件内容
func (v *Validator) ValidateConfined(data []byte, dir string) Report {
	return v.validate(data, dir, true)
}

func (v *Validator) validate(data []byte, dir string, confined bool) Report {
	b := &issues{}

	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		b.err("", fmt.Sprintf("malformed yaml: %v", err), nil)
		return b.report()
	}
	doc = normalize(doc)
	js, err := json.Marshal(doc)
	if err != nil {
		b.err("", fmt.Sprintf("convert to json: %v", err), nil)
		return b.report()
	}

	result, err := v.schema.Validate(gojsonschema.NewBytesLoader(js))
	if err != nil {
		b.err("", fmt.Sprintf("schema validation: %v", err), nil)
		return b.report()
	}
	for _, re := range result.Errors() {
		b.err(schemaPath(re), re.Description(), scalar(re.Value()))
	}

	var s Scenario
	if err := yaml.Unmarshal(data, &s); err != nil {
		// 类型不符已由 schema 报告
		v.logger.Debug("typed decode failed, semantic checks skipped", zap.Error(err))
		return b.report()
	}
	s.Dir = dir
	s.confined = confined
	checkSemantics(&s, b)

	rep := b.report()
	v.logger.Debug("scenario validated",
		zap.String("scenario", s.Name),
		zap.Bool("valid", rep.Valid),
		zap.Int("errors", len(rep.Errors)),
		zap.Int("warnings", len(rep.Warnings)))
	return rep
}

// schemaPath 将 gojsonschema 上下文 "(root).sensors.0.type" 转为 "sensors[0].type"；
// required 错误追加缺失的属性名
func schemaPath(re gojsonschema.ResultError) string {
	ctx := re.Context().String()
	ctx = strings.TrimPrefix(ctx, "(root)")
	ctx = strings.TrimPrefix(ctx, ".")
	path := dotted(ctx)
	if re.Type() == "required" {
		if prop, ok := re.Details()["property"].(string); ok && !strings.HasSuffix(path, prop) {
			path = join(path, prop)
		}
	}
	return path
}

func dotted(ctx string) string {
	if ctx == "" {
		return ""
	}
	var b strings.Builder
	for i, seg := range strings.Split(ctx, ".") {
		if _, err := strconv.Atoi(seg); err == nil {
			b.WriteString("[" + seg + "]")
			continue
		}
		if i > 0 {
			b.WriteByte('.')
		}
		b.WriteString(seg)
	}
	return b.String()
}

func join(parent, child string) string {
	if parent == "" {
		return child
	}
	return parent + "." + child
}

// scalar 报告中只保留标量取值
func scalar(v any) any {
	switch v.(type) {
	case map[string]any, []any:
		return nil
	}
	return v
}

// normalize 将 YAML 解码出的 map[interface{}]interface{} 转为 JSON 可编码结构
func normalize(v any) any {
	switch t := v.(type) {
	case map[string]any:
		for k, val := range t {
			t[k] = normalize(val)
		}
		return t
	case map[any]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[fmt.Sprint(k)] = normalize(val)
		}
		return out
	case []any:
		for i, val := range t {
			t[i] = normalize(val)
		}
		return t
	}
	return v
}

// issues 报告收集器
type issues struct {
	errors   []Issue
	warnings []Issue
}

func (b *issues) err(path, msg string, value any) {
	b.errors = append(b.errors, Issue{Path: path, Message: msg, Value: value})
}

func (b *issues) warn(path, msg string, value any) {
	b.warnings = append(b.warnings, Issue{Path: path, Message: msg, Value: value})
}

func (b *issues) report() Report {
	return Report{
		Valid:    len(b.errors) == 0,
		Errors:   sortIssues(b.errors),
		Warnings: sortIssues(b.warnings),
	}
}

func sortIssues(in []Issue) []Issue {
	out := make([]Issue, len(in))
	copy(out, in)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Path != out[j].Path {
			return out[i].Path < out[j].Path
		}
		return out[i].Message < out[j].Message
	})
	return out
}

// Package api 只读 HTTP 接口：运行状态、传感器清单、广播客户端与离线场景校验。
package api

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/taoyao-code/marine-sim/internal/engine"
	"github.com/taoyao-code/marine-sim/internal/scenario"
	"github.com/taoyao-code/marine-sim/internal/sensor"
)

// maxValidateBody 校验接口请求体上限
const maxValidateBody = 1 << 20

// StatusSource 运行状态来源（*engine.Scheduler）
type StatusSource interface {
	Status() engine.Status
}

// ClientSource 广播客户端来源（*broadcast.Hub）
type ClientSource interface {
	Counts() map[string]int
	Clients() []string
}

// SensorInfo 传感器清单条目
type SensorInfo struct {
	ID            string              `json:"id"`
	Kind          string              `json:"kind"`
	Instance      int                 `json:"instance"`
	SourceAddress int                 `json:"source_address"`
	UpdateRate    float64             `json:"update_rate"`
	Targets       map[string][]string `json:"targets"`
	Fields        []string            `json:"fields"`
}

// StatusHandler 只读接口处理器
type StatusHandler struct {
	status    StatusSource
	sc        *scenario.Scenario
	clients   ClientSource
	validator *scenario.Validator
	logger    *zap.Logger
}

// NewStatusHandler clients 与 validator 可为 nil
func NewStatusHandler(status StatusSource, sc *scenario.Scenario, clients ClientSource, validator *scenario.Validator, logger *zap.Logger) *StatusHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StatusHandler{status: status, sc: sc, clients: clients, validator: validator, logger: logger}
}

// Status GET /api/v1/status
func (h *StatusHandler) Status(c *gin.Context) {
	st := h.status.Status()
	resp := gin.H{"simulator": st}
	if h.clients != nil {
		resp["clients"] = h.clients.Counts()
	}
	c.JSON(http.StatusOK, resp)
}

// Sensors GET /api/v1/sensors
func (h *StatusHandler) Sensors(c *gin.Context) {
	mode := h.sc.Mode()
	out := make([]SensorInfo, 0, len(h.sc.Sensors))
	for _, d := range h.sc.Sensors {
		info := SensorInfo{
			ID:            d.ID(),
			Kind:          string(d.Kind()),
			Instance:      d.Instance,
			SourceAddress: d.SourceAddress,
			UpdateRate:    d.UpdateRate,
			Targets:       map[string][]string{},
		}
		if entry, err := sensor.Lookup(string(d.Kind())); err == nil {
			for _, p := range mode.Protocols() {
				if ts := entry.Targets(p); len(ts) > 0 {
					info.Targets[string(p)] = ts
				}
			}
			info.Fields = entry.FieldNames()
		}
		out = append(out, info)
	}
	c.JSON(http.StatusOK, gin.H{"scenario": h.sc.Name, "bridge_mode": mode, "sensors": out})
}

// Clients GET /api/v1/clients
func (h *StatusHandler) Clients(c *gin.Context) {
	if h.clients == nil {
		c.JSON(http.StatusOK, gin.H{"clients": []string{}, "counts": map[string]int{}})
		return
	}
	c.JSON(http.StatusOK, gin.H{"clients": h.clients.Clients(), "counts": h.clients.Counts()})
}

// Validate POST /api/v1/validate，请求体为场景 YAML；profile 只能引用当前场景目录内的相对路径
func (h *StatusHandler) Validate(c *gin.Context) {
	if h.validator == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "validator unavailable"})
		return
	}
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxValidateBody+1))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if len(body) > maxValidateBody {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "scenario too large"})
		return
	}
	report := h.validator.ValidateConfined(body, h.sc.Dir)
	h.logger.Debug("scenario validated via api",
		zap.Bool("valid", report.Valid),
		zap.Int("errors", len(report.Errors)),
		zap.Int("warnings", len(report.Warnings)))
	c.JSON(http.StatusOK, report)
}

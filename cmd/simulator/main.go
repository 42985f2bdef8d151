package main

import (
	"flag"
	"fmt"
	"io"
	"os"

	"go.uber.org/zap"

	"github.com/taoyao-code/marine-sim/internal/app/bootstrap"
	cfgpkg "github.com/taoyao-code/marine-sim/internal/config"
	"github.com/taoyao-code/marine-sim/internal/logging"
	"github.com/taoyao-code/marine-sim/internal/scenario"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

// run 返回进程退出码：0 成功，1 场景无效或运行失败，2 参数错误
func run(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("simulator", flag.ContinueOnError)
	fs.SetOutput(stderr)
	configPath := fs.String("config", "", "config file (default $MSIM_CONFIG or configs/example.yaml)")
	validate := fs.String("validate", "", "validate a scenario file and exit")
	asJSON := fs.Bool("json", false, "print the validation report as JSON")
	schema := fs.String("schema", "", "JSON schema override for -validate")
	scenarioPath := fs.String("scenario", "", "scenario file, overrides simulator.scenario")
	speed := fs.Float64("speed", 0, "virtual seconds per wall second, overrides simulator.speed")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	if *validate != "" {
		return validateOnly(*validate, *schema, *asJSON, stdout, stderr)
	}

	// 1) 加载配置
	cfg, err := cfgpkg.Load(*configPath)
	if err != nil {
		fmt.Fprintf(stderr, "load config: %v\n", err)
		return 1
	}
	if *scenarioPath != "" {
		cfg.Simulator.Scenario = *scenarioPath
	}
	if *speed > 0 {
		cfg.Simulator.Speed = *speed
	}

	// 2) 初始化日志
	logger, err := logging.InitLogger(cfg.Logging)
	if err != nil {
		fmt.Fprintf(stderr, "init logger: %v\n", err)
		return 1
	}
	defer func() { _ = logger.Sync() }()
	zap.ReplaceGlobals(logger)

	// 3) 运行直至场景结束或收到信号
	if err := bootstrap.Run(cfg, logger); err != nil {
		logger.Error("simulator exited with error", zap.Error(err))
		return 1
	}
	return 0
}

// validateOnly 校验场景并打印报告，不启动任何监听
func validateOnly(path, schemaPath string, asJSON bool, stdout, stderr io.Writer) int {
	logger, err := logging.NewCLILogger("warn")
	if err != nil {
		fmt.Fprintf(stderr, "init logger: %v\n", err)
		return 1
	}
	v, err := scenario.NewValidator(schemaPath, logger)
	if err != nil {
		fmt.Fprintf(stderr, "%v\n", err)
		return 1
	}
	report := v.ValidateFile(path)
	if asJSON {
		err = report.WriteJSON(stdout)
	} else {
		err = report.WriteText(stdout)
	}
	if err != nil {
		fmt.Fprintf(stderr, "write report: %v\n", err)
		return 1
	}
	if !report.Valid {
		return 1
	}
	return 0
}

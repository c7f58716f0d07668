package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"

	"github.com/wudi/pclkit/command"
	"github.com/wudi/pclkit/config"
	"github.com/wudi/pclkit/dump"
	"github.com/wudi/pclkit/observability"
	"github.com/wudi/pclkit/scanner"
	"github.com/wudi/pclkit/scripting"
	"github.com/wudi/pclkit/source"
)

// input is one job to decode.
type input struct {
	name string
	open func(source.Config) (source.Source, error)
}

type app struct {
	cfg     *config.Config
	log     observability.Logger
	filter  scripting.Filter
	dumper  *dump.Dumper
	stats   *dump.Stats
	visitor command.Visitor
	stderr  io.Writer
}

// run decodes every input. Failures are reported per input on stderr and
// do not stop the remaining inputs.
func run(ctx context.Context, cfg *config.Config, files []string, stdout, stderr io.Writer) error {
	zl, err := observability.NewZapLogger(cfg.Logging)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer zl.Sync()
	log := observability.FromZap(zl).With(observability.String("run_id", uuid.NewString()))

	inputs := fileInputs(files)
	if cfg.Serial.Port != "" {
		inputs = []input{serialInput(cfg.Serial)}
	}

	a := &app{cfg: cfg, log: log, stderr: stderr}
	if cfg.Dump.Filter != "" {
		f, err := scripting.Compile(cfg.Dump.Filter)
		if err != nil {
			return err
		}
		a.filter = f
	}
	names := make([]string, len(inputs))
	for i, in := range inputs {
		names[i] = in.name
	}
	a.dumper, err = dump.New(stdout, dump.Options{
		Format:   cfg.Dump.Format,
		ShowData: cfg.Dump.ShowData,
		Title:    strings.Join(names, ", "),
	})
	if err != nil {
		return err
	}
	a.visitor = a.dumper
	if cfg.Dump.Stats {
		a.stats = dump.NewStats()
		a.visitor = dump.Tee(a.dumper, a.stats)
	}

	failed := 0
	for _, in := range inputs {
		if err := a.decode(ctx, in); err != nil {
			a.report(in.name, err)
			failed++
			if errors.Is(err, context.Canceled) || a.dumper.Err() != nil {
				break
			}
		}
	}
	if err := a.dumper.Close(); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	if a.stats != nil {
		if err := a.stats.Report(stdout); err != nil {
			return fmt.Errorf("write statistics: %w", err)
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d inputs failed", failed, len(inputs))
	}
	return nil
}

func (a *app) decode(ctx context.Context, in input) (err error) {
	log := a.log.With(observability.String("input", in.name))
	src, err := in.open(sourceConfig(a.cfg.Source, log))
	if err != nil {
		return err
	}
	defer func() {
		if cerr := src.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()
	log.Debug("decoding", observability.String("strategy", src.Strategy().String()))

	n := 0
	for cmd, err := range scanner.All(scanner.New(src, scannerConfig(a.cfg.Scanner, log))) {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if a.filter != nil {
			ok, err := a.filter.Match(ctx, cmd)
			if err != nil {
				return err
			}
			if !ok {
				continue
			}
		}
		cmd.Accept(a.visitor)
		if err := a.dumper.Err(); err != nil {
			return err
		}
		n++
	}
	log.Info("decoded", observability.Int("commands", n))
	return nil
}

// report prints a failed input. Grammar errors carry the offending offset.
func (a *app) report(name string, err error) {
	var ge *scanner.GrammarError
	if errors.As(err, &ge) {
		fmt.Fprintf(a.stderr, "%s: offset %d: %s\n", name, ge.Offset, ge.Msg)
		return
	}
	fmt.Fprintf(a.stderr, "%s: %v\n", name, err)
}

func fileInputs(files []string) []input {
	inputs := make([]input, len(files))
	for i, path := range files {
		path := path
		inputs[i] = input{name: path, open: func(cfg source.Config) (source.Source, error) {
			return source.Open(path, cfg)
		}}
	}
	return inputs
}

func serialInput(sc config.SerialConfig) input {
	return input{name: sc.Port, open: func(cfg source.Config) (source.Source, error) {
		return source.OpenSerial(source.SerialConfig{
			Port:        sc.Port,
			BaudRate:    sc.BaudRate,
			DataBits:    sc.DataBits,
			StopBits:    sc.StopBits,
			Parity:      sc.Parity,
			IdleTimeout: sc.IdleTimeout,
		}, cfg)
	}}
}

func sourceConfig(c config.SourceConfig, log observability.Logger) source.Config {
	return source.Config{
		MaxBufferSize: c.MaxBufferSize,
		MaxMapSize:    c.MaxMapSize,
		MarkSize:      c.MarkSize,
		Logger:        log,
	}
}

func scannerConfig(c config.ScannerConfig, log observability.Logger) scanner.Config {
	return scanner.Config{
		MaxDataLength:  c.MaxDataLength,
		SkipBinaryData: c.SkipBinaryData,
		Logger:         log,
	}
}

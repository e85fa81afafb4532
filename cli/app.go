package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/nixxel-company-limited/embosser-controller/config"
	"github.com/nixxel-company-limited/embosser-controller/controller"
	"github.com/nixxel-company-limited/embosser-controller/device"
	"github.com/nixxel-company-limited/embosser-controller/document"
	"github.com/nixxel-company-limited/embosser-controller/gateway"
	"github.com/nixxel-company-limited/embosser-controller/monitor"
	"github.com/nixxel-company-limited/embosser-controller/notify"
)

// app is the wired controller stack
type app struct {
	hub     *notify.Hub
	gateway *gateway.Client
	monitor *monitor.Monitor
	ctrl    *controller.Controller
}

func newApp(cfg *config.Config) *app {
	hub := notify.NewHub()
	gw := gateway.New(gateway.Conf{Host: cfg.Gateway.Host, Timeout: cfg.Gateway.Timeout}, hub, logger)
	mon := monitor.New(gw, cfg.Monitor.Interval, logger)
	ctrl := controller.New(controller.Deps{
		Session:   device.NewSession(gw, hub, logger),
		Store:     document.NewStore(gw, document.FitzInspector{}, hub, logger),
		Commander: gw,
		Monitor:   mon,
		Notifier:  hub,
		Logger:    logger,
	})
	return &app{hub: hub, gateway: gw, monitor: mon, ctrl: ctrl}
}

func (a *app) close() {
	a.ctrl.Close()
}

// contentFrom builds submission content from exactly one of text or file
func contentFrom(text, file string) (document.Content, error) {
	switch {
	case strings.TrimSpace(text) != "" && file != "":
		return document.Content{}, fmt.Errorf("--text and --file are mutually exclusive")
	case file != "":
		data, err := os.ReadFile(file)
		if err != nil {
			return document.Content{}, err
		}
		return document.PDF(filepath.Base(file), data), nil
	default:
		return document.Text(text), nil
	}
}

// logNotifications mirrors operator notifications into the log until ctx ends
func (a *app) logNotifications(ctx context.Context) {
	notes, cancel := a.hub.Subscribe(64)
	go func() {
		<-ctx.Done()
		cancel()
	}()
	go func() {
		for n := range notes {
			ev := logger.Info()
			switch n.Level {
			case notify.LevelWarning:
				ev = logger.Warn()
			case notify.LevelError:
				ev = logger.Error()
			}
			ev.Str("title", n.Title).Msg(n.Message)
		}
	}()
}

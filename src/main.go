package main

import (
	"FlightAnalytics/src/config"
	"FlightAnalytics/src/datapush"
	"FlightAnalytics/src/datasource/file"
	"FlightAnalytics/src/processor"
	"FlightAnalytics/src/report"
	"FlightAnalytics/src/storage"
	"FlightAnalytics/src/web"
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/robfig/cron"
)

const pidFile = "flight.pid"

// app ties the loaded configuration to the dataset it serves.
type app struct {
	cfg    *config.Config
	dcfg   *config.DataConfig
	logger *storage.Logger
	dsw    *processor.DatasetWrapper
	mailer *datapush.MailPusher
}

func newApp(cfg *config.Config, dcfg *config.DataConfig, logger *storage.Logger) (*app, error) {
	a := &app{
		cfg:    cfg,
		dcfg:   dcfg,
		logger: logger,
		dsw:    &processor.DatasetWrapper{},
		mailer: datapush.NewMailPusher(cfg),
	}
	if _, err := a.dsw.Reload(a.load); err != nil {
		return nil, err
	}
	return a, nil
}

func (a *app) load() (*processor.Dataset, error) {
	return file.LoadDataset(a.cfg, a.dcfg, a.logger)
}

// reload rebuilds the dataset; on failure the previous one stays live.
func (a *app) reload(reason string) {
	ds, err := a.dsw.Reload(a.load)
	if err != nil {
		a.logger.Errorf("reload (%s) failed, keeping previous dataset: %v", reason, err)
		return
	}
	a.logger.Infof("dataset reloaded (%s): %s", reason, ds.Stats())
}

// pushReport writes a workbook for the full year range and mails it when
// mail is configured.
func (a *app) pushReport(now time.Time) (string, error) {
	ds, err := a.dsw.GetDS()
	if err != nil {
		return "", err
	}
	r := processor.FullRange(ds)
	path, err := report.SaveReport(a.cfg.Report.Dir, ds, r, a.dcfg.DefaultTopN, now)
	if err != nil {
		return "", err
	}
	a.logger.Info("report written: " + path)

	if a.cfg.MailEnabled() {
		summary := fmt.Sprintf("Passenger statistics %d-%d, %d airport rows.\n", r.From, r.To, ds.Len())
		if err := a.mailer.SendReport(path, summary); err != nil {
			return path, fmt.Errorf("mail report: %w", err)
		}
		a.logger.Infof("report mailed to %v", a.cfg.SendEmail.To)
	}
	return path, nil
}

// scheduleJobs registers the log rotation check and, when configured, the
// periodic report.
func (a *app) scheduleJobs() (*cron.Cron, error) {
	c := cron.New()

	rotateSpec := fmt.Sprintf("@every %s", a.cfg.Reload.CheckInterval)
	err := c.AddFunc(rotateSpec, func() {
		if err := a.logger.CheckRotate(a.cfg.LogMaxSize); err != nil {
			a.logger.Errorf("log rotation failed: %v", err)
		}
	})
	if err != nil {
		return nil, fmt.Errorf("schedule log rotation: %w", err)
	}

	if time.Duration(a.cfg.Report.Interval) > 0 {
		reportSpec := fmt.Sprintf("@every %s", a.cfg.Report.Interval)
		err = c.AddFunc(reportSpec, func() {
			if _, err := a.pushReport(time.Now()); err != nil {
				a.logger.Errorf("scheduled report failed: %v", err)
			}
		})
		if err != nil {
			return nil, fmt.Errorf("schedule report: %w", err)
		}
	}
	return c, nil
}

// watchSources reloads whenever one of the source tables changes on disk.
func (a *app) watchSources(ctx context.Context) {
	monitor, err := file.NewFileMonitor(a.cfg.TrafficPath(), a.cfg.LocationPath())
	if err != nil {
		a.logger.Error("file monitor unavailable: " + err.Error())
		return
	}
	err = monitor.Watch(ctx, func(path string) {
		a.logger.Info("source changed: " + path)
		a.reload("file change")
	})
	if err != nil {
		a.logger.Error("file monitoring error: " + err.Error())
	}
}

// waitForShutdown handles SIGHUP (reopen the log, reload the data) until
// SIGINT or SIGTERM arrives.
func (a *app) waitForShutdown(sigChan <-chan os.Signal, srv *http.Server) {
	for sig := range sigChan {
		if sig == syscall.SIGHUP {
			if err := a.logger.Reopen(a.cfg.LogName); err != nil {
				log.Println("reopen log:", err)
			}
			a.reload("SIGHUP")
			continue
		}

		a.logger.Info("Received signal: " + sig.String() + ", shutting down...")
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := srv.Shutdown(ctx); err != nil {
			a.logger.Error("http shutdown: " + err.Error())
		}
		cancel()
		return
	}
}

func main() {
	configDir := flag.String("config", "./config", "folder holding config.json and dataconfig.json")
	flag.Parse()

	cfg, dcfg, err := config.LoadConfig(*configDir, "config.json", "dataconfig.json")
	if err != nil {
		log.Fatal("Failed to load config:", err)
	}

	// logger first so a failed load is recorded
	logger, err := storage.NewLogger(cfg.LogName)
	if err != nil {
		log.Fatal("Failed to initialize logger:", err)
	}
	defer logger.Close()
	logger.SetEcho(os.Stdout)
	logger.SetLevel(storage.ParseLevel(cfg.LogLevel))

	a, err := newApp(cfg, dcfg, logger)
	if err != nil {
		logger.Fatal("Failed to load dataset: " + err.Error())
		log.Fatal(err)
	}

	c, err := a.scheduleJobs()
	if err != nil {
		logger.Fatal(err.Error())
		log.Fatal(err)
	}
	c.Start()
	defer c.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if cfg.Reload.Watch {
		go a.watchSources(ctx)
	}

	if err := os.WriteFile(pidFile, []byte(strconv.Itoa(os.Getpid())), 0644); err != nil {
		logger.Warningf("write pid file: %v", err)
	}
	defer os.Remove(pidFile)

	srv := &http.Server{
		Addr:    cfg.Server.Addr,
		Handler: web.NewServer(a.dsw, dcfg, logger, a.load).Router(),
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGHUP, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		logger.Infof("serving on %s (reload watch: %v, report interval: %s)",
			cfg.Server.Addr, cfg.Reload.Watch, cfg.Report.Interval)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server: " + err.Error())
			sigChan <- syscall.SIGTERM
		}
	}()

	a.waitForShutdown(sigChan, srv)
}

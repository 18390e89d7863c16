package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"plotstation/config"
	"plotstation/devices"
	"plotstation/jobs"
	"plotstation/logging"
	"plotstation/notify"
	"plotstation/utils"
	"plotstation/web"
)

func main() {
	settings := config.Default()
	settings.ApplyEnv()
	settings.RegisterFlags(flag.CommandLine)
	flag.Parse()

	if err := settings.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		flag.Usage()
		os.Exit(2)
	}
	logging.Init(settings.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if settings.StreamFile != "" {
		if err := streamOnce(ctx, settings); err != nil {
			log.Fatalf("stream %s: %v", settings.StreamFile, err)
		}
		return
	}
	runService(ctx, settings)
}

// streamOnce sends one file to the controller and waits for it to finish.
func streamOnce(ctx context.Context, s config.Settings) error {
	f, err := os.Open(s.StreamFile)
	if err != nil {
		return err
	}
	defer f.Close()

	fmt.Println("🔌 Opening", s.Port)
	link, err := devices.Open(s)
	if err != nil {
		return err
	}
	defer link.Close()
	fmt.Printf("✅ Connected: %s\n", link.Name())

	fmt.Println("🏠 Homing...")
	if err := link.Home(ctx); err != nil {
		return err
	}
	if err := link.WaitIdle(ctx); err != nil {
		return err
	}

	streamer := devices.NewStreamer(s)
	var result devices.StreamResult
	if s.SettingsMode {
		fmt.Println("⚙️ Writing settings...")
		result, err = streamer.StreamSettings(ctx, link, f)
	} else {
		fmt.Println("🖊️ Streaming...")
		result, err = streamer.Stream(ctx, link, f)
	}
	if err != nil {
		return err
	}

	fmt.Printf("📦 %d lines sent, %d acknowledged\n", result.Sent, result.Acked)
	if result.Failed() {
		return fmt.Errorf("%d commands rejected", len(result.Errors))
	}
	fmt.Println("✅ Done")
	return nil
}

func runService(ctx context.Context, s config.Settings) {
	mailbox := jobs.NewMailbox()

	notifier, err := notify.New(s.Notify)
	if err != nil {
		log.Fatalf("notifier: %v", err)
	}

	var plotter jobs.Plotter
	portName := ""
	if s.Simulated() {
		fmt.Printf("🧪 No plotter port given, simulating %v per job\n", s.SimulatedDelay)
		plotter = jobs.SimulatedPlotter{Delay: s.SimulatedDelay}
	} else {
		fmt.Println("🔌 Opening plotter...")
		link, err := devices.Open(s)
		if err != nil {
			log.Fatalf("plotter: %v", err)
		}
		defer link.Close()
		portName = link.Name()
		fmt.Printf("✅ Plotter connected: %s\n", portName)

		if !s.HomeEachJob {
			fmt.Println("🏠 Homing...")
			if err := link.Home(ctx); err != nil {
				log.Fatalf("home: %v", err)
			}
			if err := link.WaitIdle(ctx); err != nil {
				log.Fatalf("wait idle: %v", err)
			}
		}

		plotter = &jobs.StreamPlotter{
			Link:         link,
			Streamer:     devices.NewStreamer(s),
			HomeEachJob:  s.HomeEachJob,
			SettingsMode: s.SettingsMode,
		}
	}

	var wg sync.WaitGroup
	worker := jobs.NewWorker(mailbox, plotter, notifier, s.PollInterval)
	wg.Add(1)
	go func() {
		defer wg.Done()
		worker.Run(ctx)
	}()

	if s.WatchDir != "" {
		var converter jobs.Converter
		if s.ConverterPath != "" {
			converter = &jobs.ExecConverter{Bin: s.ConverterPath, OutputDir: s.OutputDir}
		}
		watcher := jobs.NewWatcher(s.WatchDir, s.WatchInterval, mailbox, converter)
		fmt.Printf("📂 Watching %s\n", s.WatchDir)
		wg.Add(1)
		go func() {
			defer wg.Done()
			watcher.Run(ctx)
		}()
	}

	if s.HTTPAddr != "" {
		state := &web.AppState{
			Mailbox:   mailbox,
			Port:      portName,
			Simulated: s.Simulated(),
			Roots:     []string{s.WatchDir, s.OutputDir},
		}
		fmt.Printf("🌐 Status page on http://localhost%s\n", s.HTTPAddr)
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := web.StartServer(ctx, s.HTTPAddr, state); err != nil {
				log.Fatalf("web: %v", err)
			}
		}()
	}

	busy, label := mailbox.Status()
	fmt.Printf("📡 Plotter %s %s\n", utils.BoolToString(busy), label)

	<-ctx.Done()
	fmt.Println("🛑 Shutting down, waiting for the current job...")
	wg.Wait()

	if job, ok := mailbox.TakeAndClear(); ok {
		logging.Warn("system", "dropping queued job %s (%s) that never started", job.Label, job.Path)
	}
}

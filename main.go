// SPDX-License-Identifier: MIT
package main

import (
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"bandstretch/cmd"
	"bandstretch/internal/audio"
	"bandstretch/internal/config"
	"bandstretch/internal/engine"
	"bandstretch/internal/log"
	"bandstretch/internal/transport"
	"bandstretch/internal/transport/udp"
	"bandstretch/internal/tui"
	"bandstretch/pkg/build"
)

// main runs in three phases:
//
// 1. Startup (cold path): build info, configuration, PortAudio, engine.
// 2. Concurrent (hot path): duplex stream callback, energy publishers,
//    optional recording and meter UI.
// 3. Shutdown (cold path): publishers first, then the stream, then the
//    engine, so nothing publishes or renders from released buffers.
func main() {
	// ==================== STARTUP PHASE (Cold Path) ====================

	if err := build.Initialize(); err != nil {
		log.Fatalf("%v", err)
	}

	// One thread for the audio callback, one for UI and publishers.
	runtime.GOMAXPROCS(2)

	cfg, err := cmd.ParseArgs()
	if err != nil {
		log.Fatalf("%v", err)
	}

	if level, ok := log.ParseLevel(cfg.LogLevel); ok {
		log.SetLevel(level)
	}

	if err := audio.Initialize(); err != nil {
		log.Fatalf("%v", err)
	}
	defer audio.Terminate()

	// One-off commands run without the engine.
	if cfg.Command == "list" {
		if err := audio.ListDevices(); err != nil {
			log.Fatalf("%v", err)
		}
		return
	}

	eng, err := engine.NewEngine(cfg)
	if err != nil {
		log.Fatalf("%v", err)
	}

	stream, err := audio.NewStream(cfg, eng)
	if err != nil {
		log.Fatalf("%v", err)
	}

	// ==================== CONCURRENT PHASE (Hot Path) ====================

	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGTERM)

	if err := stream.Start(); err != nil {
		log.Fatalf("%v", err)
	}

	publisher, transports, err := startPublishers(cfg, eng)
	if err != nil {
		log.Fatalf("%v", err)
	}

	if cfg.Recording.Enabled {
		if err := stream.StartRecording(cfg.Recording.OutputFile); err != nil {
			log.Fatalf("%v", err)
		}
	}

	if cfg.Meter {
		// The meter owns the terminal until the user quits; treat quitting
		// the meter the same as an interrupt.
		go func() {
			if err := tui.StartMeterUI(eng); err != nil {
				log.Errorf("meter: %v", err)
			}
			done <- syscall.SIGTERM
		}()
	} else {
		fmt.Printf("%s running. '%s --help' for usage information.\n",
			build.GetBuildFlags().Name, build.GetBuildFlags().Name)
	}

	<-done

	// ==================== SHUTDOWN PHASE (Cold Path) ====================

	if publisher != nil {
		if err := publisher.Stop(); err != nil {
			log.Errorf("stopping publisher: %v", err)
		}
	}
	for _, t := range transports {
		if err := t.Close(); err != nil {
			log.Errorf("closing transport: %v", err)
		}
	}

	// Stop the callback before finalizing the recording, so nothing is
	// writing to the encoder while the WAV header is closed out.
	wasRecording := stream.Recording()
	if err := stream.Close(); err != nil {
		log.Errorf("closing stream: %v", err)
	}
	if wasRecording {
		fmt.Printf("\nRecording saved to: %s\n", cfg.Recording.OutputFile)
	}
	if err := eng.Close(); err != nil {
		log.Errorf("closing engine: %v", err)
	}
}

// startPublishers wires the enabled energy-frame transports to a single
// publisher polling the engine. Returns a nil publisher when no transport
// is enabled.
func startPublishers(cfg *config.Config, eng *engine.Engine) (*transport.Publisher, []transport.Transport, error) {
	var transports []transport.Transport

	if cfg.Transport.WebSocketEnabled {
		transports = append(transports,
			transport.NewWebSocketTransport(":"+cfg.Transport.WebSocketPort))
	}

	if cfg.Transport.UDPEnabled {
		sender, err := udp.NewSender(cfg.Transport.UDPTarget)
		if err != nil {
			return nil, nil, err
		}
		energyTransport, err := udp.NewEnergyTransport(sender)
		if err != nil {
			return nil, nil, err
		}
		transports = append(transports, energyTransport)
	}

	if len(transports) == 0 {
		return nil, nil, nil
	}

	interval := time.Duration(cfg.Transport.SendIntervalMs) * time.Millisecond
	publisher, err := transport.NewPublisher(interval, eng, transports...)
	if err != nil {
		return nil, nil, err
	}
	publisher.Start()

	return publisher, transports, nil
}

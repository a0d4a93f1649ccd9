package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"sync"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/ftl/rtlscan/core"
	"github.com/ftl/rtlscan/core/app"
	"github.com/ftl/rtlscan/core/audio"
	"github.com/ftl/rtlscan/core/cfg"
	"github.com/ftl/rtlscan/core/input"
	"github.com/ftl/rtlscan/core/vfo"
	"github.com/ftl/rtlscan/ui/tui"
	"github.com/ftl/rtlscan/ui/web"
)

var rootFlags = struct {
	frequency  float64
	sampleRate float64
	gain       string
	testmode   bool
	web        bool
	webAddress string
	headless   bool
	record     string
	logFile    string
	vfo        string
	noAudio    bool
}{}

var rootCmd = &cobra.Command{
	Use:           "rtlscan",
	Short:         "Interactive spectrum scanner for RTL-SDR dongles",
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runScanner,
}

func init() {
	rootCmd.Flags().Float64VarP(&rootFlags.frequency, "freq", "f", 0, "center frequency in MHz")
	rootCmd.Flags().Float64VarP(&rootFlags.sampleRate, "sample-rate", "s", 0, "sample rate in MHz")
	rootCmd.Flags().StringVarP(&rootFlags.gain, "gain", "g", "", "tuner gain in dB or auto")
	rootCmd.Flags().BoolVar(&rootFlags.testmode, "testmode", false, "use a synthetic signal source instead of the dongle")
	rootCmd.Flags().BoolVarP(&rootFlags.web, "web", "w", false, "start the web relay")
	rootCmd.Flags().StringVar(&rootFlags.webAddress, "web-address", "", "listen address of the web relay")
	rootCmd.Flags().BoolVar(&rootFlags.headless, "headless", false, "read keys from the raw terminal and print a status line instead of the terminal UI")
	rootCmd.Flags().StringVar(&rootFlags.record, "record", "", "record the demodulated audio to the given WAV file")
	rootCmd.Flags().StringVar(&rootFlags.logFile, "log", "", "write the log to the given file")
	rootCmd.Flags().StringVar(&rootFlags.vfo, "vfo", "", "follow the hamlib rig at the given address")
	rootCmd.Flags().BoolVar(&rootFlags.noAudio, "no-audio", false, "do not open the audio output")
}

func loadConfiguration(cmd *cobra.Command) (core.Configuration, error) {
	configuration, err := cfg.Load()
	if err != nil {
		log.Println(err)
		configuration = cfg.Static()
	}

	flags := cmd.Flags()
	if flags.Changed("freq") {
		configuration.CenterFrequency = core.FromMHz(rootFlags.frequency)
	}
	if flags.Changed("sample-rate") {
		configuration.SampleRate = int(rootFlags.sampleRate * 1000000)
	}
	if flags.Changed("gain") {
		gain, err := core.ParseGain(rootFlags.gain)
		if err != nil {
			return core.Configuration{}, err
		}
		configuration.Gain = gain
	}
	if flags.Changed("testmode") {
		configuration.Testmode = rootFlags.testmode
	}
	if flags.Changed("web-address") {
		configuration.WebAddress = rootFlags.webAddress
	}
	if flags.Changed("vfo") {
		configuration.VFOHost = rootFlags.vfo
	}
	return configuration, nil
}

func setupLog() (io.Closer, error) {
	switch {
	case rootFlags.logFile != "":
		f, err := os.OpenFile(rootFlags.logFile, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0644)
		if err != nil {
			return nil, errors.Wrap(err, "cannot open log file")
		}
		log.SetOutput(f)
		return f, nil
	case !rootFlags.headless:
		log.SetOutput(io.Discard)
	}
	return io.NopCloser(nil), nil
}

func runScanner(cmd *cobra.Command, args []string) error {
	configuration, err := loadConfiguration(cmd)
	if err != nil {
		return err
	}

	logCloser, err := setupLog()
	if err != nil {
		return err
	}
	defer logCloser.Close()

	device, err := app.OpenDevice(configuration)
	if err != nil {
		return err
	}
	session, err := app.NewSession(configuration, device)
	if err != nil {
		return err
	}

	monitor := setupAudio()
	defer monitor.Close()
	session.OnAudio(monitor.Audio)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	var wait sync.WaitGroup

	if configuration.VFOHost != "" {
		setupVFO(ctx, &wait, session, configuration.VFOHost)
	}

	var webFrames <-chan app.Frame
	if rootFlags.web {
		webFrames = session.Subscribe()
	}

	var ui *tui.TUI
	var headlessFrames <-chan app.Frame
	if rootFlags.headless {
		headlessFrames = session.Subscribe()
	} else {
		ui, err = tui.New(session)
		if err != nil {
			session.Stop()
			return err
		}
		defer ui.Close()
		session.OnFrame(ui.ShowFrame)
	}

	session.Start(ctx)
	log.Printf("session %s started", session.ID())

	if rootFlags.web {
		wait.Add(1)
		go func() {
			defer wait.Done()
			server := web.NewServer(session)
			if err := server.Serve(ctx, configuration.WebAddress, configuration.WebAnnounce, webFrames); err != nil {
				log.Print("web relay: ", err)
			}
		}()
	}

	if rootFlags.headless {
		err = runHeadless(ctx, session, headlessFrames)
	} else {
		go func() {
			<-session.Quit()
			ui.Quit()
		}()
		err = ui.Run()
	}

	cancel()
	if stopErr := session.Stop(); stopErr != nil {
		log.Print(stopErr)
	}
	wait.Wait()
	if err != nil {
		return err
	}
	return session.Err()
}

func setupAudio() *audio.Monitor {
	writers := []audio.Writer{}
	if !rootFlags.noAudio {
		player, err := audio.NewPlayer()
		if err != nil {
			log.Print(err)
		} else {
			writers = append(writers, player)
		}
	}
	if rootFlags.record != "" {
		recorder, err := audio.NewRecorder(rootFlags.record)
		if err != nil {
			log.Print(err)
		} else {
			writers = append(writers, recorder)
		}
	}
	return audio.NewMonitor(writers...)
}

func setupVFO(ctx context.Context, wait *sync.WaitGroup, session *app.Session, address string) {
	rig, err := vfo.Open(address)
	if err != nil {
		log.Print(err)
		return
	}
	session.OnTune(rig.SetFrequency)
	rig.OnFrequencyChange(func(f core.Frequency) {
		if err := session.SetFrequency(f); err != nil {
			log.Print(err)
		}
	})
	rig.Run(ctx, wait)
}

// runHeadless reads the keys from the raw terminal and prints the status of every frame on a single line.
func runHeadless(ctx context.Context, session *app.Session, frames <-chan app.Frame) error {
	fd := int(os.Stdin.Fd())
	if term.IsTerminal(fd) {
		state, err := term.MakeRaw(fd)
		if err != nil {
			return errors.Wrap(err, "cannot switch the terminal to raw mode")
		}
		defer term.Restore(fd, state)
	}

	keys := input.ReadKeys(ctx, os.Stdin, input.DefaultEscapeTimeout)
	for {
		select {
		case <-session.Quit():
			fmt.Print("\r\n")
			return nil
		case key, ok := <-keys:
			if !ok {
				keys = nil
				continue
			}
			if err := session.HandleKey(key); err != nil {
				log.Print(err)
			}
		case frame, ok := <-frames:
			if !ok {
				return nil
			}
			fmt.Printf("\r\033[K%s", tui.StatusLine(frame))
		}
	}
}

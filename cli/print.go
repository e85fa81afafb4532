package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/briandowns/spinner"
	"github.com/fatih/color"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/nixxel-company-limited/embosser-controller/monitor"
)

var printFlags struct {
	text string
	file string
	page int
	port string
	baud int
}

const shutdownTimeout = 10 * time.Second

var printCmd = &cobra.Command{
	Use:   "print",
	Short: "Transcribe content and emboss one page",
	Long: `print connects to the device, transcribes --text or --file, sends the chosen
page and follows the live dot feed until every requested dot has been struck.
Interrupting stops the job and disconnects.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		content, err := contentFrom(printFlags.text, printFlags.file)
		if err != nil {
			return err
		}
		port, baud := cfg.Device.Port, cfg.Device.BaudRate
		if printFlags.port != "" {
			port = printFlags.port
		}
		if printFlags.baud != 0 {
			baud = printFlags.baud
		}

		a := newApp(cfg)
		defer a.close()

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		a.logNotifications(ctx)

		if err := a.ctrl.Connect(ctx, port, baud); err != nil {
			return err
		}
		defer func() {
			dctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if err := a.ctrl.Disconnect(dctx); err != nil {
				logger.Warn().Err(err).Msg("disconnect failed")
			}
		}()

		spin := spinner.New(spinner.CharSets[14], 100*time.Millisecond, spinner.WithWriter(os.Stderr))
		spin.Suffix = " transcribing"
		spin.Start()
		doc, err := a.ctrl.Submit(ctx, content)
		spin.Stop()
		if err != nil {
			return err
		}

		if err := a.ctrl.SelectPage(printFlags.page - 1); err != nil {
			return err
		}
		progress := a.ctrl.Progress()
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "%s page %d of %d, %d dots to strike\n",
			color.CyanString("embossing"), progress.Page+1, doc.PageCount(), progress.Requested)

		bar := progressbar.NewOptions(max(progress.Requested, 1),
			progressbar.OptionSetWriter(os.Stderr),
			progressbar.OptionSetDescription(fmt.Sprintf("page %d", progress.Page+1)),
			progressbar.OptionShowCount(),
			progressbar.OptionSetPredictTime(false),
		)

		done := make(chan struct{})
		var once sync.Once
		a.monitor.OnUpdate(func(monitor.Snapshot) {
			p := a.ctrl.Progress()
			_ = bar.Set(min(p.Struck, max(p.Requested, 1)))
			if p.Done() {
				once.Do(func() { close(done) })
			}
		})

		if err := a.ctrl.Print(ctx); err != nil {
			return err
		}
		if progress.Requested == 0 {
			_ = bar.Finish()
			fmt.Fprintln(out, color.YellowString("page has no dots to strike"))
			return nil
		}

		select {
		case <-done:
			_ = bar.Finish()
			fmt.Fprintln(out)
			fmt.Fprintln(out, color.GreenString("page %d embossed", progress.Page+1))
			return nil
		case <-ctx.Done():
			fmt.Fprintln(out)
			fmt.Fprintln(out, color.YellowString("interrupted, stopping job"))
			sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			return a.ctrl.Stop(sctx)
		}
	},
}

func init() {
	printCmd.Flags().StringVarP(&printFlags.text, "text", "t", "", "text to emboss")
	printCmd.Flags().StringVarP(&printFlags.file, "file", "f", "", "PDF file to emboss")
	printCmd.Flags().IntVarP(&printFlags.page, "page", "p", 1, "page to emboss (1-based)")
	printCmd.Flags().StringVar(&printFlags.port, "port", "", "serial port (default from device.port)")
	printCmd.Flags().IntVar(&printFlags.baud, "baud", 0, "baud rate (default from device.baud_rate)")
}

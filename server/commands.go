package server

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/nixxel-company-limited/embosser-controller/controller"
	"github.com/nixxel-company-limited/embosser-controller/document"
	"github.com/nixxel-company-limited/embosser-controller/failure"
	"github.com/nixxel-company-limited/embosser-controller/notify"
)

const helpText = `commands:
  connect [port] [baud]   open the device session
  disconnect              close the device session
  ports                   list serial ports
  text <content>          transcribe text
  pdf <path>              transcribe a PDF file
  close                   drop the current document
  page <n>                view page n (1-based)
  next | prev             move one page
  print | pause | resume | stop
  status                  session, page and job state
  live                    struck dots on the page in view
  quit`

// dispatch runs one command line and returns the reply lines
func (s *Server) dispatch(ctx context.Context, line string) (replies []string, quit bool) {
	name, rest, _ := strings.Cut(line, " ")
	rest = strings.TrimSpace(rest)
	args := strings.Fields(rest)

	switch strings.ToLower(name) {
	case "help", "?":
		return strings.Split(helpText, "\n"), false
	case "quit", "exit":
		return []string{"ok bye"}, true
	case "connect":
		return s.connect(ctx, args), false
	case "disconnect":
		if err := s.ctrl.Disconnect(ctx); err != nil {
			return errorReply(err), false
		}
		return []string{"ok disconnected"}, false
	case "ports":
		return s.ports(), false
	case "text":
		return s.submit(ctx, document.Text(rest)), false
	case "pdf":
		return s.submitFile(ctx, rest), false
	case "close":
		s.ctrl.CloseDocument()
		return []string{"ok document closed"}, false
	case "page":
		if len(args) != 1 {
			return []string{"error usage: page <n>"}, false
		}
		n, err := strconv.Atoi(args[0])
		if err != nil {
			return []string{"error usage: page <n>"}, false
		}
		return s.pageReply(s.ctrl.SelectPage(n - 1)), false
	case "next":
		return s.pageReply(s.ctrl.NextPage()), false
	case "prev":
		return s.pageReply(s.ctrl.PrevPage()), false
	case "print":
		return s.jobReply(s.ctrl.Print(ctx)), false
	case "pause":
		return s.jobReply(s.ctrl.Pause(ctx)), false
	case "resume":
		return s.jobReply(s.ctrl.Resume(ctx)), false
	case "stop":
		return s.jobReply(s.ctrl.Stop(ctx)), false
	case "status":
		return []string{"ok " + formatState(s.ctrl.State(), s.ctrl.Progress())}, false
	case "live":
		return s.live(), false
	default:
		return []string{fmt.Sprintf("error unknown command %q, type help", name)}, false
	}
}

func (s *Server) connect(ctx context.Context, args []string) []string {
	port, baud := s.DefaultPort, s.DefaultBaud
	if len(args) > 0 {
		port = args[0]
	}
	if len(args) > 1 {
		b, err := strconv.Atoi(args[1])
		if err != nil {
			return []string{"error usage: connect [port] [baud]"}
		}
		baud = b
	}
	if err := s.ctrl.Connect(ctx, port, baud); err != nil {
		return errorReply(err)
	}
	return []string{fmt.Sprintf("ok connected %s %d", port, baud)}
}

func (s *Server) ports() []string {
	if s.Discover == nil {
		return []string{"error port discovery unavailable"}
	}
	ports, _, err := s.Discover()
	if err != nil {
		return []string{"error " + err.Error()}
	}
	replies := make([]string, 0, len(ports)+1)
	for _, p := range ports {
		mark := " "
		if p.Likely() {
			mark = "*"
		}
		replies = append(replies, fmt.Sprintf("port %s %s %s", mark, p.Name, p.Product))
	}
	return append(replies, fmt.Sprintf("ok %d ports", len(ports)))
}

func (s *Server) submit(ctx context.Context, content document.Content) []string {
	doc, err := s.ctrl.Submit(ctx, content)
	if err != nil {
		return errorReply(err)
	}
	return []string{fmt.Sprintf("ok transcribed %d pages", doc.PageCount())}
}

func (s *Server) submitFile(ctx context.Context, path string) []string {
	if path == "" {
		return errorReply(failure.WithOp("submit", failure.ErrEmptyContent))
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return errorReply(failure.NewPrecondition("submit", err.Error()))
	}
	return s.submit(ctx, document.PDF(filepath.Base(path), data))
}

func (s *Server) pageReply(err error) []string {
	if err != nil {
		return errorReply(err)
	}
	st := s.ctrl.State()
	return []string{fmt.Sprintf("ok page %d/%d", st.Job.PageIndex+1, st.PageCount)}
}

func (s *Server) jobReply(err error) []string {
	if err != nil {
		return errorReply(err)
	}
	return []string{"ok " + s.ctrl.Job().Status.String()}
}

func (s *Server) live() []string {
	st := s.ctrl.State()
	replies := make([]string, 0, len(st.Live)+1)
	for _, d := range st.Live {
		replies = append(replies, fmt.Sprintf("dot %.2f %.2f %t", d.X, d.Y, d.Punch))
	}
	return append(replies, fmt.Sprintf("ok page %d live %d dots", st.Job.PageIndex+1, len(st.Live)))
}

func errorReply(err error) []string {
	return []string{fmt.Sprintf("error %s: %s", failure.KindOf(err), failure.Message(err))}
}

func formatState(st controller.State, p controller.Progress) string {
	page := 0
	if st.PageCount > 0 {
		page = st.Job.PageIndex + 1
	}
	return fmt.Sprintf("connected=%t port=%s baud=%d pages=%d page=%d status=%s in_flight=%t struck=%d/%d",
		st.Session.Connected, st.Session.Port, st.Session.BaudRate, st.PageCount, page,
		st.Job.Status, st.Job.RequestInFlight, p.Struck, p.Requested)
}

func formatNotice(n notify.Notification) string {
	return fmt.Sprintf("notice %s %s: %s", n.Level, n.Title, n.Message)
}

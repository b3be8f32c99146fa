package notifications

import (
	"bytes"
	"fmt"
	"log"
	"os"
	"strings"
	"text/template"
	"time"

	"github.com/nicholas-fedor/shoutrrr"
	"github.com/sirupsen/logrus"

	shoutrrrTypes "github.com/nicholas-fedor/shoutrrr/pkg/types"

	"github.com/gantry-dev/gantry/pkg/notifications/templates"
	"github.com/gantry-dev/gantry/pkg/types"
)

// LocalLog is a logrus logger that does not send entries as notifications.
// Used for internal logging to avoid notification loops.
var LocalLog = logrus.WithField("notify", "no")

// initialEntriesCapacity sizes the per-run log entry batch.
const initialEntriesCapacity = 10

// router abstracts the shoutrrr sender for testing.
type router interface {
	Send(message string, params *shoutrrrTypes.Params) []error
}

// shoutrrrNotifier implements types.Notifier and logrus.Hook. It collects
// log entries during an update run and sends them, together with the session
// report, as a single templated message per configured service.
type shoutrrrNotifier struct {
	Urls        []string
	Router      router
	entries     []*logrus.Entry
	logLevel    logrus.Level
	template    *template.Template
	messages    chan string
	done        chan bool
	logTemplate bool
	params      *shoutrrrTypes.Params
	data        StaticData
	receiving   bool
	delay       time.Duration
}

// GetScheme extracts the scheme part of a shoutrrr URL, or "invalid" when
// no scheme is found.
func GetScheme(url string) string {
	schemeEnd := strings.Index(url, ":")
	if schemeEnd <= 0 {
		return "invalid"
	}

	return url[:schemeEnd]
}

// GetNames returns the configured service names, derived from URL schemes.
func (n *shoutrrrNotifier) GetNames() []string {
	names := make([]string, len(n.Urls))
	for i, u := range n.Urls {
		names[i] = GetScheme(u)
	}

	return names
}

// GetURLs returns the raw service URLs.
func (n *shoutrrrNotifier) GetURLs() []string {
	return n.Urls
}

// AddLogHook registers the notifier as a logrus hook and starts the sending
// goroutine. Safe to call more than once.
func (n *shoutrrrNotifier) AddLogHook() {
	if n.receiving {
		return
	}

	n.receiving = true
	logrus.AddHook(n)

	// Sending happens off the main goroutine so a slow service never blocks
	// an update run.
	go sendNotifications(n)
}

// createNotifier initializes a shoutrrr notifier for the given service URLs.
// The template string is parsed with the shared template funcs, falling back
// to the default template on error. When stdout is set, shoutrrr's own log
// output goes to stdout instead of the trace level.
func createNotifier(
	urls []string,
	level logrus.Level,
	tplString string,
	logOnly bool,
	data StaticData,
	stdout bool,
	delay time.Duration,
) *shoutrrrNotifier {
	tpl, err := getShoutrrrTemplate(tplString, logOnly)
	if err != nil {
		logrus.WithError(err).
			Error("Could not use configured notification template, using default")
	}

	var logger shoutrrrTypes.StdLogger
	if stdout {
		logger = log.New(os.Stdout, ``, 0)
	} else {
		logger = log.New(logrus.StandardLogger().WriterLevel(logrus.TraceLevel), "Shoutrrr: ", 0)
	}

	router, err := shoutrrr.NewSender(logger, urls...)
	if err != nil {
		logrus.WithError(err).Fatal("Failed to initialize shoutrrr notifications")
	}

	params := &shoutrrrTypes.Params{}
	if data.Title != "" {
		params.SetTitle(data.Title)
	}

	return &shoutrrrNotifier{
		Urls:        urls,
		Router:      router,
		messages:    make(chan string, 1),
		done:        make(chan bool),
		logLevel:    level,
		template:    tpl,
		logTemplate: logOnly,
		data:        data,
		params:      params,
		delay:       delay,
		entries:     make([]*logrus.Entry, 0, initialEntriesCapacity),
	}
}

// sendNotifications delivers queued messages via the router, applying the
// configured delay between sends. Send failures are logged locally.
func sendNotifications(notifier *shoutrrrNotifier) {
	for msg := range notifier.messages {
		time.Sleep(notifier.delay)
		errs := notifier.Router.Send(msg, notifier.params)

		for i, err := range errs {
			if err != nil {
				scheme := GetScheme(notifier.Urls[i])
				LocalLog.WithFields(logrus.Fields{
					"service": scheme,
					"index":   i,
				}).WithError(err).Error("Failed to send shoutrrr notification")
			}
		}
	}

	notifier.done <- true
}

// buildMessage renders the notification body from the template. Log-only
// templates receive just the entries; report templates receive everything.
func (n *shoutrrrNotifier) buildMessage(data Data) (string, error) {
	var body bytes.Buffer

	var templateData any = data
	if n.logTemplate {
		templateData = data.Entries
	}

	if err := n.template.Execute(&body, templateData); err != nil {
		return "", fmt.Errorf("failed to execute notification template: %w", err)
	}

	return body.String(), nil
}

// sendEntries queues a batch of log entries and an optional report as one
// notification, skipping empty messages.
func (n *shoutrrrNotifier) sendEntries(entries []*logrus.Entry, report types.Report) {
	msg, err := n.buildMessage(Data{n.data, entries, report})

	if msg == "" {
		// Log in a goroutine in case we entered from Fire, to avoid stalling.
		go func() {
			if err != nil {
				LocalLog.WithError(err).Fatal("Notification template error")
			} else if len(n.Urls) > 1 {
				LocalLog.Info("Skipping notification due to empty message")
			}
		}()

		return
	}
	n.messages <- msg
}

// StartNotification begins batching log entries for the current run.
func (n *shoutrrrNotifier) StartNotification() {
	if n.entries == nil {
		n.entries = make([]*logrus.Entry, 0, initialEntriesCapacity)
	}
}

// SendNotification sends the batched entries together with the session
// report and clears the batch.
func (n *shoutrrrNotifier) SendNotification(report types.Report) {
	n.sendEntries(n.entries, report)
	n.entries = nil
}

// Close stops accepting messages and blocks until queued messages are sent.
func (n *shoutrrrNotifier) Close() {
	close(n.messages)

	LocalLog.Info("Waiting for the notification goroutine to finish")

	<-n.done
}

// Levels returns the log levels that trigger notifications.
func (n *shoutrrrNotifier) Levels() []logrus.Level {
	return logrus.AllLevels[:n.logLevel+1]
}

// Fire handles a new log message as a logrus hook. Entries tagged notify=no
// are ignored; entries outside a batching window are sent immediately.
func (n *shoutrrrNotifier) Fire(entry *logrus.Entry) error {
	if entry.Data["notify"] == "no" {
		return nil
	}

	if n.entries != nil {
		n.entries = append(n.entries, entry)
	} else {
		n.sendEntries([]*logrus.Entry{entry}, nil)
	}

	return nil
}

// getShoutrrrTemplate parses the given template string, resolving built-in
// template names first, and falls back to the default template for the mode.
func getShoutrrrTemplate(tplString string, logOnly bool) (*template.Template, error) {
	tplBase := template.New("").Funcs(templates.Funcs)

	if builtin, found := commonTemplates[tplString]; found {
		logrus.WithField(`template`, tplString).Debug(`Using built-in template`)
		tplString = builtin
	}

	var tpl *template.Template

	var err error

	if tplString != "" {
		tpl, err = tplBase.Parse(tplString)
		if err != nil {
			return nil, fmt.Errorf("failed to parse notification template string: %w", err)
		}
	}

	if tplString == "" {
		defaultKey := `default`
		if logOnly {
			defaultKey = `default-log`
		}

		tpl = template.Must(tplBase.Parse(commonTemplates[defaultKey]))
	}

	return tpl, nil
}

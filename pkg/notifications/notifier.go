// Package notifications sends update session reports through shoutrrr
// services, batching log output per run and rendering it with configurable
// templates.
package notifications

import (
	"os"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/gantry-dev/gantry/pkg/types"
)

// ColorHex is the default notification color used for services that support
// it (formatted as a CSS hex string).
const ColorHex = "#2d5b7a"

// ColorInt is the default notification color used for services that support
// it (as an int value).
const ColorInt = 0x2d5b7a

// NewNotifier creates and returns a new Notifier, using global configuration.
func NewNotifier(c *cobra.Command) types.Notifier {
	flag := c.Flags()

	level, _ := flag.GetString("notification-level")
	clog := logrus.WithField("level", level)

	logLevel, err := logrus.ParseLevel(level)
	if err != nil {
		clog.WithError(err).Fatal("Invalid notification log level")
	}

	reportTemplate, _ := flag.GetBool("notification-report")
	stdout, _ := flag.GetBool("notification-log-stdout")
	tplString, _ := flag.GetString("notification-template")
	urls, _ := flag.GetStringArray("notification-url")
	delaySeconds, _ := flag.GetInt("notification-delay")
	delay := time.Duration(delaySeconds) * time.Second

	data := GetTemplateData(c)

	clog.WithFields(logrus.Fields{
		"urls":        urls,
		"template":    tplString,
		"skip_report": !reportTemplate,
		"stdout":      stdout,
		"delay":       delay,
		"hostname":    data.Host,
		"title":       data.Title,
	}).Debug("Creating notifier with configuration")

	return createNotifier(urls, logLevel, tplString, !reportTemplate, data, stdout, delay)
}

// GetTitle formats the notification title from the hostname and tag.
func GetTitle(hostname string, tag string) string {
	titleBuilder := strings.Builder{}
	if tag != "" {
		titleBuilder.WriteRune('[')
		titleBuilder.WriteString(tag)
		titleBuilder.WriteRune(']')
		titleBuilder.WriteRune(' ')
	}

	titleBuilder.WriteString("Gantry updates")

	if hostname != "" {
		titleBuilder.WriteString(" on ")
		titleBuilder.WriteString(hostname)
	}

	return titleBuilder.String()
}

// GetTemplateData populates the static notification data from flags and
// environment.
func GetTemplateData(c *cobra.Command) StaticData {
	flag := c.Flags()

	hostname, _ := flag.GetString("notification-hostname")
	if hostname == "" {
		hostname, _ = os.Hostname()
	}

	title := ""

	if skip, _ := flag.GetBool("notification-skip-title"); !skip {
		tag, _ := flag.GetString("notification-title-tag")
		title = GetTitle(hostname, tag)
	}

	return StaticData{
		Host:  hostname,
		Title: title,
	}
}

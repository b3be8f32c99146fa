package notifications

import (
	"text/template"
	"time"

	"github.com/onsi/ginkgo/v2"
	"github.com/onsi/gomega"
	"github.com/sirupsen/logrus"

	shoutrrrTypes "github.com/nicholas-fedor/shoutrrr/pkg/types"

	"github.com/gantry-dev/gantry/internal/actions/mocks"
	"github.com/gantry-dev/gantry/pkg/session"
)

// recordingRouter captures sent messages instead of delivering them.
type recordingRouter struct {
	sent []string
}

func (r *recordingRouter) Send(message string, _ *shoutrrrTypes.Params) []error {
	r.sent = append(r.sent, message)

	return nil
}

func newTestNotifier(tplString string, logOnly bool) (*shoutrrrNotifier, *recordingRouter) {
	tpl, err := getShoutrrrTemplate(tplString, logOnly)
	gomega.Expect(err).NotTo(gomega.HaveOccurred())

	router := &recordingRouter{}

	return &shoutrrrNotifier{
		Urls:        []string{"logger://"},
		Router:      router,
		messages:    make(chan string, 1),
		done:        make(chan bool),
		logLevel:    logrus.InfoLevel,
		template:    tpl,
		logTemplate: logOnly,
		params:      &shoutrrrTypes.Params{},
	}, router
}

var _ = ginkgo.Describe("the shoutrrr notifier", func() {
	ginkgo.Describe("GetScheme", func() {
		ginkgo.It("should extract the service scheme from a URL", func() {
			gomega.Expect(GetScheme("slack://token@channel")).To(gomega.Equal("slack"))
			gomega.Expect(GetScheme("generic+https://example.com")).To(gomega.Equal("generic+https"))
		})
		ginkgo.It("should return invalid for scheme-less URLs", func() {
			gomega.Expect(GetScheme("not-a-url")).To(gomega.Equal("invalid"))
			gomega.Expect(GetScheme(":empty")).To(gomega.Equal("invalid"))
		})
	})

	ginkgo.Describe("GetNames", func() {
		ginkgo.It("should list the configured service names", func() {
			notifier := &shoutrrrNotifier{Urls: []string{"slack://x", "smtp://y"}}
			gomega.Expect(notifier.GetNames()).To(gomega.Equal([]string{"slack", "smtp"}))
		})
	})

	ginkgo.Describe("the default template", func() {
		ginkgo.It("should summarize the session report", func() {
			notifier, _ := newTestNotifier("", false)
			report := mocks.CreateMockProgressReport(
				session.UpdatedState, session.FreshState, session.FailedState)

			msg, err := notifier.buildMessage(Data{Report: report})
			gomega.Expect(err).NotTo(gomega.HaveOccurred())
			gomega.Expect(msg).To(gomega.ContainSubstring("1 Updated"))
			gomega.Expect(msg).To(gomega.ContainSubstring("1 Failed"))
		})

		ginkgo.It("should render log entries when no report is attached", func() {
			notifier, _ := newTestNotifier("", false)
			entries := []*logrus.Entry{
				{Message: "checking containers", Time: time.Now()},
			}

			msg, err := notifier.buildMessage(Data{Entries: entries})
			gomega.Expect(err).NotTo(gomega.HaveOccurred())
			gomega.Expect(msg).To(gomega.ContainSubstring("checking containers"))
		})
	})

	ginkgo.Describe("the log-only template", func() {
		ginkgo.It("should render entry messages with their fields", func() {
			notifier, _ := newTestNotifier("", true)
			entries := []*logrus.Entry{
				{Message: "container updated", Data: logrus.Fields{"container": "app"}},
			}

			msg, err := notifier.buildMessage(Data{Entries: entries})
			gomega.Expect(err).NotTo(gomega.HaveOccurred())
			gomega.Expect(msg).To(gomega.ContainSubstring("container updated"))
			gomega.Expect(msg).To(gomega.ContainSubstring("container=app"))
		})
	})

	ginkgo.Describe("the json.v1 template", func() {
		ginkgo.It("should render the report as JSON", func() {
			notifier, _ := newTestNotifier("json.v1", false)
			report := mocks.CreateMockProgressReport(session.UpdatedState)

			msg, err := notifier.buildMessage(Data{Report: report})
			gomega.Expect(err).NotTo(gomega.HaveOccurred())
			gomega.Expect(msg).To(gomega.ContainSubstring(`"updated"`))
			gomega.Expect(msg).To(gomega.ContainSubstring(`"state": "Updated"`))
		})
	})

	ginkgo.Describe("batching", func() {
		ginkgo.It("should queue entries during a run and send one message", func() {
			notifier, router := newTestNotifier("", false)
			go sendNotifications(notifier)

			notifier.StartNotification()
			gomega.Expect(notifier.Fire(&logrus.Entry{Message: "first"})).To(gomega.Succeed())
			gomega.Expect(notifier.Fire(&logrus.Entry{Message: "second"})).To(gomega.Succeed())
			notifier.SendNotification(nil)
			notifier.Close()

			gomega.Expect(router.sent).To(gomega.HaveLen(1))
			gomega.Expect(router.sent[0]).To(gomega.ContainSubstring("first"))
			gomega.Expect(router.sent[0]).To(gomega.ContainSubstring("second"))
		})

		ginkgo.It("should ignore entries tagged as non-notify", func() {
			notifier, _ := newTestNotifier("", false)
			notifier.StartNotification()
			gomega.Expect(notifier.Fire(&logrus.Entry{
				Message: "internal",
				Data:    logrus.Fields{"notify": "no"},
			})).To(gomega.Succeed())
			gomega.Expect(notifier.entries).To(gomega.BeEmpty())
		})
	})

	ginkgo.Describe("template fallback", func() {
		ginkgo.It("should reject unparsable template strings", func() {
			_, err := getShoutrrrTemplate("{{ broken", false)
			gomega.Expect(err).To(gomega.HaveOccurred())
		})

		ginkgo.It("should resolve built-in template names", func() {
			tpl, err := getShoutrrrTemplate("porcelain.v1.summary-no-log", false)
			gomega.Expect(err).NotTo(gomega.HaveOccurred())
			gomega.Expect(tpl).NotTo(gomega.BeNil())
		})
	})
})

var _ = ginkgo.Describe("notification titles", func() {
	ginkgo.It("should include the hostname and tag when set", func() {
		gomega.Expect(GetTitle("node-1", "prod")).To(gomega.Equal("[prod] Gantry updates on node-1"))
	})
	ginkgo.It("should omit missing parts", func() {
		gomega.Expect(GetTitle("", "")).To(gomega.Equal("Gantry updates"))
	})
})

var _ = ginkgo.DescribeTable("template funcs availability",
	func(name string) {
		tpl, err := getShoutrrrTemplate("{{ "+name+" \"text\" }}", false)
		gomega.Expect(err).NotTo(gomega.HaveOccurred())
		gomega.Expect(tpl).To(gomega.BeAssignableToTypeOf(&template.Template{}))
	},
	ginkgo.Entry("upper casing", "ToUpper"),
	ginkgo.Entry("lower casing", "ToLower"),
	ginkgo.Entry("title casing", "Title"),
)

package email

const (
	subjectReminderFmt    = "Lead protection ending soon: %s"
	subjectGracePeriodFmt = "Grace period started: %s"
	subjectExpiredFmt     = "Lead protection expired: %s"
)

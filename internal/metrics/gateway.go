package metrics

// Gateway metrics, labelled by quota record unless noted.
const (
	EventsTotal          = "loggate_events_total"
	EscalationsTotal     = "loggate_escalations_total"
	SuppressedTotal      = "loggate_suppressed_total"
	QuotaNoticesTotal    = "loggate_quota_notices_total"
	RemoteFailuresTotal  = "loggate_remote_failures_total"
	WindowResetsTotal    = "loggate_window_resets_total"
	PersistFailuresTotal = "loggate_persist_failures_total"
	QuotaUsed            = "loggate_quota_used"
)

func quotaLabel(quota string) map[string]string {
	return map[string]string{"quota": quota}
}

// RecordEvent counts an event accepted by the gateway, by severity.
func RecordEvent(severity string) {
	counter(EventsTotal, map[string]string{"severity": severity})
}

// RecordEscalation counts an event forwarded to the remote sink.
func RecordEscalation(quota string) { counter(EscalationsTotal, quotaLabel(quota)) }

// RecordSuppressed counts an error event dropped because the quota is spent.
func RecordSuppressed(quota string) { counter(SuppressedTotal, quotaLabel(quota)) }

// RecordQuotaNotice counts a remote "quota exceeded" notice.
func RecordQuotaNotice(quota string) { counter(QuotaNoticesTotal, quotaLabel(quota)) }

// RecordRemoteFailure counts a failed remote delivery.
func RecordRemoteFailure(quota string) { counter(RemoteFailuresTotal, quotaLabel(quota)) }

// RecordWindowReset counts a quota window rollover.
func RecordWindowReset(quota string) { counter(WindowResetsTotal, quotaLabel(quota)) }

// RecordPersistFailure counts a failed quota write.
func RecordPersistFailure(quota string) { counter(PersistFailuresTotal, quotaLabel(quota)) }

// SetQuotaUsed records escalations spent in the current window.
func SetQuotaUsed(quota string, used int) {
	gauge(QuotaUsed, float64(used), quotaLabel(quota))
}

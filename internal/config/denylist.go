package config

// SensitiveDomains returns hostname fragments excluded from tracking and
// export when auto exclusion is enabled. Entries are matched as substrings
// of the hostname, so "bank" covers any host containing it.
func SensitiveDomains() []string {
	return []string{
		// Banking & Financial
		"bank",
		"chase.com",
		"wellsfargo.com",
		"bankofamerica.com",
		"paypal.com",
		"venmo.com",

		// Healthcare & Medical
		"healthcare",
		"medical",
		"therapy",
		"health.google.com",
		"privatehealth",
	}
}

// Package tracking implements the email send-tracking service.
//
// This is the system of record for which addresses a business has already
// been mailed. The bulk-send workflow asks CheckDuplicates before a
// campaign goes out, mails only the new addresses, then calls RecordSends
// with the per-recipient outcomes. Dashboards read history and stats from
// the same service.
//
// The service layer contains pure business logic and depends on the
// Repository interface defined in repository.go. It never imports
// net/http or database/sql directly.
package tracking

package mailbox

import (
	"time"

	"github.com/emersion/go-imap/v2"
)

// Known sender addresses and display names of the verification emails.
var senderClauses = []string{
	"info@netflix.com",
	"netflix@netflix.com",
	"Netflix",
	"no-reply@netflix.com",
	"Mohammed Saqhib",
	"Saqhib",
	"msaqhib76@gmail.com",
	"msaqhib04@gmail.com",
}

// Subject keywords associated with the verification-email domain.
var subjectClauses = []string{
	"Netflix",
	"verification",
	"Verify",
	"Your Netflix",
	"Verification Code",
	"Household",
}

// candidateClauses returns the flat clause list matching any known
// sender or subject keyword.
func candidateClauses() []imap.SearchCriteria {
	clauses := make([]imap.SearchCriteria, 0, len(senderClauses)+len(subjectClauses))
	for _, from := range senderClauses {
		clauses = append(clauses, imap.SearchCriteria{
			Header: []imap.SearchCriteriaHeaderField{{Key: "From", Value: from}},
		})
	}
	for _, subject := range subjectClauses {
		clauses = append(clauses, imap.SearchCriteria{
			Header: []imap.SearchCriteriaHeaderField{{Key: "Subject", Value: subject}},
		})
	}
	return clauses
}

// anyOf folds a clause list into a single OR criteria tree.
func anyOf(clauses []imap.SearchCriteria) imap.SearchCriteria {
	if len(clauses) == 0 {
		return imap.SearchCriteria{}
	}
	result := clauses[0]
	for _, clause := range clauses[1:] {
		result = imap.SearchCriteria{
			Or: [][2]imap.SearchCriteria{{result, clause}},
		}
	}
	return result
}

// UnreadCriteria matches unread candidate messages with no time bound.
func UnreadCriteria() *imap.SearchCriteria {
	criteria := anyOf(candidateClauses())
	criteria.NotFlag = []imap.Flag{imap.FlagSeen}
	return &criteria
}

// RecentCriteria matches candidate messages received since the given
// time, regardless of read state.
func RecentCriteria(since time.Time) *imap.SearchCriteria {
	criteria := anyOf(candidateClauses())
	criteria.Since = since
	return &criteria
}

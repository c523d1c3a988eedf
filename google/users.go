package google

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"log/syslog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	analytics "google.golang.org/api/analytics/v3"

	"github.com/silinternational/analytics-admin/internal"
)

type AddUsersJob struct {
	Emails      []string
	Permissions []string
	ViewIDs     []string
}

type DeleteUsersJob struct {
	Emails []string
}

func NewAddUsersJob(extraJSON json.RawMessage) (AddUsersJob, error) {
	var job AddUsersJob
	if err := json.Unmarshal(extraJSON, &job); err != nil {
		return job, fmt.Errorf("unable to unmarshal AddUsers job config, error: %s", err)
	}
	if len(job.Emails) == 0 {
		return job, fmt.Errorf("AddUsers job config is missing an Emails list")
	}
	if len(job.Permissions) == 0 {
		return job, fmt.Errorf("AddUsers job config is missing a Permissions list")
	}
	return job, nil
}

func NewDeleteUsersJob(extraJSON json.RawMessage) (DeleteUsersJob, error) {
	var job DeleteUsersJob
	if err := json.Unmarshal(extraJSON, &job); err != nil {
		return job, fmt.Errorf("unable to unmarshal DeleteUsers job config, error: %s", err)
	}
	if len(job.Emails) == 0 {
		return job, fmt.Errorf("DeleteUsers job config is missing an Emails list")
	}
	return job, nil
}

// BulkAddUsers grants each email the job's permissions on each view,
// one insert call at a time. Failed inserts are logged and skipped.
func (a *Analytics) BulkAddUsers(logger *log.Logger, job AddUsersJob, eventLog chan<- internal.EventLogItem) internal.OpResults {
	viewIDs := job.ViewIDs
	if len(viewIDs) == 0 {
		viewIDs = []string{a.Config.ViewID}
	}

	var results internal.OpResults

	for _, email := range job.Emails {
		for _, viewID := range viewIDs {
			created := a.AddViewUser(a.Config.AccountID, a.Config.PropertyID, viewID, email, job.Permissions)
			if created == nil {
				eventLog <- internal.EventLogItem{
					Level:   syslog.LOG_ERR,
					Message: fmt.Sprintf("unable to add %s to view %s", email, viewID),
				}
				results.Failed++
				continue
			}

			eventLog <- internal.EventLogItem{
				Level:   syslog.LOG_INFO,
				Message: "AddUser " + email + " view " + viewID,
			}
			results.Succeeded++
		}
	}

	logger.Printf("BulkAddUsers finished: %v added, %v failed\n", results.Succeeded, results.Failed)
	return results
}

// BulkDeleteUsers removes every view-level user-link matching each requested
// email, across every account the credential can see. Per account and email,
// one goroutine per web property lists that property's views and queues one
// delete per matching link into a shared batch; after all workers are joined
// the batch is flushed once. Goroutines are capped by maxConcurrency so an
// account with very many properties cannot exhaust the process.
func (a *Analytics) BulkDeleteUsers(
	logger *log.Logger,
	job DeleteUsersJob,
	maxConcurrency int,
	eventLog chan<- internal.EventLogItem,
) (internal.OpResults, error) {
	start := time.Now()

	if maxConcurrency <= 0 {
		maxConcurrency = internal.DefaultMaxConcurrency
	}

	accounts, err := a.API.ListAccounts()
	if err != nil {
		return internal.OpResults{}, internal.JobError{
			Message:   errors.New(callErrorMessage("BulkDeleteUsers", err)),
			SendAlert: true,
		}
	}

	var results internal.OpResults

	for _, account := range accounts.Items {
		for _, email := range job.Emails {
			a.deleteUserFromAccount(logger, account.Id, email, maxConcurrency, &results, eventLog)
		}
	}

	logger.Printf("BulkDeleteUsers finished in %.1f minutes: %v deleted, %v failed\n",
		time.Since(start).Minutes(), results.Succeeded, results.Failed)
	return results, nil
}

// deleteUserFromAccount runs the fork-join for one (account, email) pair:
// workers only append to the shared batch, and the batch is flushed exactly
// once after the join. An account with no matching links flushes an empty
// batch, which is a no-op.
func (a *Analytics) deleteUserFromAccount(
	logger *log.Logger,
	accountID, email string,
	maxConcurrency int,
	results *internal.OpResults,
	eventLog chan<- internal.EventLogItem,
) {
	properties, err := a.API.ListWebProperties(accountID)
	if err != nil {
		eventLog <- internal.EventLogItem{
			Level:   syslog.LOG_ERR,
			Message: callErrorMessage("BulkDeleteUsers account "+accountID, err),
		}
		atomic.AddUint64(&results.Failed, 1)
		return
	}

	batch := internal.NewBatch(0)
	var wg sync.WaitGroup
	sem := make(chan struct{}, maxConcurrency)

	for _, property := range properties.Items {
		wg.Add(1)
		sem <- struct{}{}
		go func(propertyID string) {
			defer wg.Done()
			defer func() { <-sem }()
			a.queueLinkDeletions(accountID, propertyID, email, batch, results, eventLog)
		}(property.Id)
	}

	wg.Wait()

	flushed := batch.Flush(func(requestID string, _ interface{}, err error) {
		if err != nil {
			eventLog <- internal.EventLogItem{
				Level:   syslog.LOG_ERR,
				Message: callErrorMessage("delete "+requestID, err),
			}
			atomic.AddUint64(&results.Failed, 1)
			return
		}

		eventLog <- internal.EventLogItem{
			Level:   syslog.LOG_INFO,
			Message: "DeleteUserLink " + requestID,
		}
		atomic.AddUint64(&results.Succeeded, 1)
	})

	logger.Printf("account %s: %v link deletions for %s\n", accountID, flushed, email)
}

// queueLinkDeletions is the per-property worker body: list views, list each
// view's user-links, queue one delete per link whose email matches.
func (a *Analytics) queueLinkDeletions(
	accountID, propertyID, email string,
	batch *internal.Batch,
	results *internal.OpResults,
	eventLog chan<- internal.EventLogItem,
) {
	profiles, err := a.API.ListProfiles(accountID, propertyID)
	if err != nil {
		eventLog <- internal.EventLogItem{
			Level:   syslog.LOG_ERR,
			Message: callErrorMessage("BulkDeleteUsers property "+propertyID, err),
		}
		atomic.AddUint64(&results.Failed, 1)
		return
	}

	for _, profile := range profiles.Items {
		links, err := a.API.ListProfileUserLinks(accountID, propertyID, profile.Id)
		if err != nil {
			eventLog <- internal.EventLogItem{
				Level:   syslog.LOG_ERR,
				Message: callErrorMessage("BulkDeleteUsers view "+profile.Id, err),
			}
			atomic.AddUint64(&results.Failed, 1)
			continue
		}

		for _, link := range links.Items {
			if !linkMatchesEmail(link, email) {
				continue
			}

			profileID := profile.Id
			linkID := link.Id
			requestID := fmt.Sprintf("%s/%s/%s/%s", accountID, propertyID, profileID, linkID)
			batch.Queue(requestID, func() (interface{}, error) {
				return nil, a.API.DeleteProfileUserLink(accountID, propertyID, profileID, linkID)
			})
		}
	}
}

func linkMatchesEmail(link *analytics.EntityUserLink, email string) bool {
	return link.UserRef != nil && strings.EqualFold(link.UserRef.Email, email)
}

package google

import (
	"bytes"
	"errors"
	"fmt"
	"log"
	"log/syslog"
	"os"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	analytics "google.golang.org/api/analytics/v3"
	"google.golang.org/api/googleapi"

	"github.com/silinternational/analytics-admin/internal"
)

type fakeAnalyticsAPI struct {
	mu         sync.Mutex
	accounts   []*analytics.Account
	properties map[string][]*analytics.Webproperty    // accountID
	profiles   map[string][]*analytics.Profile        // accountID/propertyID
	links      map[string][]*analytics.EntityUserLink // accountID/propertyID/profileID
	deleted    []string

	listAccountsErr error
	listLinksErr    error
	deleteErr       error
}

func (f *fakeAnalyticsAPI) ListAccounts() (*analytics.Accounts, error) {
	if f.listAccountsErr != nil {
		return nil, f.listAccountsErr
	}
	return &analytics.Accounts{Items: f.accounts}, nil
}

func (f *fakeAnalyticsAPI) ListAccountSummaries() (*analytics.AccountSummaries, error) {
	return &analytics.AccountSummaries{}, nil
}

func (f *fakeAnalyticsAPI) ListWebProperties(accountID string) (*analytics.Webproperties, error) {
	return &analytics.Webproperties{Items: f.properties[accountID]}, nil
}

func (f *fakeAnalyticsAPI) ListProfiles(accountID, propertyID string) (*analytics.Profiles, error) {
	return &analytics.Profiles{Items: f.profiles[accountID+"/"+propertyID]}, nil
}

func (f *fakeAnalyticsAPI) ListAccountUserLinks(accountID string) (*analytics.EntityUserLinks, error) {
	if f.listLinksErr != nil {
		return nil, f.listLinksErr
	}
	return &analytics.EntityUserLinks{Items: f.links[accountID]}, nil
}

func (f *fakeAnalyticsAPI) ListProfileUserLinks(accountID, propertyID, profileID string) (*analytics.EntityUserLinks, error) {
	if f.listLinksErr != nil {
		return nil, f.listLinksErr
	}
	return &analytics.EntityUserLinks{Items: f.links[accountID+"/"+propertyID+"/"+profileID]}, nil
}

func (f *fakeAnalyticsAPI) InsertProfileUserLink(accountID, propertyID, profileID string, link *analytics.EntityUserLink) (*analytics.EntityUserLink, error) {
	created := *link
	created.Id = fmt.Sprintf("%s:%s", profileID, link.UserRef.Email)
	return &created, nil
}

func (f *fakeAnalyticsAPI) DeleteProfileUserLink(accountID, propertyID, profileID, linkID string) error {
	if f.deleteErr != nil {
		return f.deleteErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, fmt.Sprintf("%s/%s/%s/%s", accountID, propertyID, profileID, linkID))
	return nil
}

func userLink(id, email string) *analytics.EntityUserLink {
	return &analytics.EntityUserLink{
		Id:      id,
		UserRef: &analytics.UserRef{Email: email},
		Permissions: &analytics.EntityUserLinkPermissions{
			Effective: []string{"READ_AND_ANALYZE"},
		},
	}
}

func drainEvents(eventLog chan internal.EventLogItem) []internal.EventLogItem {
	close(eventLog)
	var items []internal.EventLogItem
	for item := range eventLog {
		items = append(items, item)
	}
	return items
}

func TestBulkDeleteUsersOneMatchingLink(t *testing.T) {
	// one account, two properties, only the second has a view-link for the
	// requested user
	fake := &fakeAnalyticsAPI{
		accounts: []*analytics.Account{{Id: "100", Name: "Main"}},
		properties: map[string][]*analytics.Webproperty{
			"100": {{Id: "UA-100-1"}, {Id: "UA-100-2"}},
		},
		profiles: map[string][]*analytics.Profile{
			"100/UA-100-1": {{Id: "v1"}},
			"100/UA-100-2": {{Id: "v2"}},
		},
		links: map[string][]*analytics.EntityUserLink{
			"100/UA-100-1/v1": {userLink("link-a", "other@example.com")},
			"100/UA-100-2/v2": {
				userLink("link-b", "other@example.com"),
				userLink("link-c", "user@example.com"),
			},
		},
	}

	a := &Analytics{API: fake}
	eventLog := make(chan internal.EventLogItem, 100)
	logger := log.New(&bytes.Buffer{}, "", 0)

	results, err := a.BulkDeleteUsers(logger, DeleteUsersJob{Emails: []string{"user@example.com"}}, 4, eventLog)
	require.NoError(t, err)

	require.Equal(t, []string{"100/UA-100-2/v2/link-c"}, fake.deleted)
	require.Equal(t, uint64(1), results.Succeeded)
	require.Equal(t, uint64(0), results.Failed)

	successes := 0
	for _, item := range drainEvents(eventLog) {
		if item.Level == syslog.LOG_INFO && strings.HasPrefix(item.Message, "DeleteUserLink") {
			successes++
		}
	}
	require.Equal(t, 1, successes)
}

func TestBulkDeleteUsersNoMatches(t *testing.T) {
	fake := &fakeAnalyticsAPI{
		accounts: []*analytics.Account{{Id: "100"}},
		properties: map[string][]*analytics.Webproperty{
			"100": {{Id: "UA-100-1"}},
		},
		profiles: map[string][]*analytics.Profile{
			"100/UA-100-1": {{Id: "v1"}},
		},
		links: map[string][]*analytics.EntityUserLink{
			"100/UA-100-1/v1": {userLink("link-a", "other@example.com")},
		},
	}

	a := &Analytics{API: fake}
	eventLog := make(chan internal.EventLogItem, 100)
	logger := log.New(&bytes.Buffer{}, "", 0)

	results, err := a.BulkDeleteUsers(logger, DeleteUsersJob{Emails: []string{"user@example.com"}}, 4, eventLog)
	require.NoError(t, err)

	// an empty batch is a no-op, not an error
	require.Empty(t, fake.deleted)
	require.Equal(t, uint64(0), results.Succeeded)
	require.Equal(t, uint64(0), results.Failed)
}

func TestBulkDeleteUsersAccountListFailure(t *testing.T) {
	fake := &fakeAnalyticsAPI{
		listAccountsErr: &googleapi.Error{Code: 503, Message: "backend unavailable"},
	}

	a := &Analytics{API: fake}
	eventLog := make(chan internal.EventLogItem, 10)
	logger := log.New(&bytes.Buffer{}, "", 0)

	_, err := a.BulkDeleteUsers(logger, DeleteUsersJob{Emails: []string{"user@example.com"}}, 4, eventLog)
	require.Error(t, err)
	require.Contains(t, err.Error(), "there was an API error: 503")

	var jobErr internal.JobError
	require.True(t, errors.As(err, &jobErr))
	require.True(t, jobErr.SendAlert)
}

func TestBulkDeleteUsersPartialDeleteFailure(t *testing.T) {
	fake := &fakeAnalyticsAPI{
		accounts: []*analytics.Account{{Id: "100"}},
		properties: map[string][]*analytics.Webproperty{
			"100": {{Id: "UA-100-1"}},
		},
		profiles: map[string][]*analytics.Profile{
			"100/UA-100-1": {{Id: "v1"}},
		},
		links: map[string][]*analytics.EntityUserLink{
			"100/UA-100-1/v1": {userLink("link-a", "user@example.com")},
		},
		deleteErr: &googleapi.Error{Code: 403, Message: "insufficient permissions"},
	}

	a := &Analytics{API: fake}
	eventLog := make(chan internal.EventLogItem, 100)
	logger := log.New(&bytes.Buffer{}, "", 0)

	results, err := a.BulkDeleteUsers(logger, DeleteUsersJob{Emails: []string{"user@example.com"}}, 4, eventLog)
	require.NoError(t, err)
	require.Equal(t, uint64(0), results.Succeeded)
	require.Equal(t, uint64(1), results.Failed)

	found := false
	for _, item := range drainEvents(eventLog) {
		if item.Level == syslog.LOG_ERR && strings.Contains(item.Message, "there was an API error: 403") {
			found = true
		}
	}
	require.True(t, found, "expected a classified API error in the event log")
}

func TestListAccountUsersErrorClassification(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		wantLog string
	}{
		{
			name:    "remote API error",
			err:     &googleapi.Error{Code: 403, Message: "forbidden"},
			wantLog: "there was an API error: 403 forbidden",
		},
		{
			name:    "query construction error",
			err:     errors.New("missing required field accountId"),
			wantLog: "there was an error in constructing your query: missing required field accountId",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			log.SetOutput(&buf)
			defer log.SetOutput(os.Stderr)

			a := &Analytics{API: &fakeAnalyticsAPI{listLinksErr: tt.err}}
			links := a.ListAccountUsers("100")
			require.Nil(t, links)
			require.Contains(t, buf.String(), tt.wantLog)
		})
	}
}

func TestAddViewUserPrintsSummary(t *testing.T) {
	var buf bytes.Buffer
	log.SetOutput(&buf)
	defer log.SetOutput(os.Stderr)

	a := &Analytics{API: &fakeAnalyticsAPI{}}
	created := a.AddViewUser("100", "UA-100-1", "v1", "user@example.com", []string{"READ_AND_ANALYZE"})
	require.NotNil(t, created)
	require.Contains(t, buf.String(), "added user user@example.com to view v1")
	require.Contains(t, buf.String(), "READ_AND_ANALYZE")
}

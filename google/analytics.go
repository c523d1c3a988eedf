package google

import (
	"log"
	"strings"

	analytics "google.golang.org/api/analytics/v3"

	"github.com/silinternational/analytics-admin/internal"
)

// AnalyticsAPI is the narrow Management API surface the admin jobs call.
// Test doubles implement it to simulate success and both failure kinds
// without a live network.
type AnalyticsAPI interface {
	ListAccounts() (*analytics.Accounts, error)
	ListAccountSummaries() (*analytics.AccountSummaries, error)
	ListWebProperties(accountID string) (*analytics.Webproperties, error)
	ListProfiles(accountID, propertyID string) (*analytics.Profiles, error)
	ListAccountUserLinks(accountID string) (*analytics.EntityUserLinks, error)
	ListProfileUserLinks(accountID, propertyID, profileID string) (*analytics.EntityUserLinks, error)
	InsertProfileUserLink(accountID, propertyID, profileID string, link *analytics.EntityUserLink) (*analytics.EntityUserLink, error)
	DeleteProfileUserLink(accountID, propertyID, profileID, linkID string) error
}

type analyticsAPI struct {
	service *analytics.Service
}

func (a *analyticsAPI) ListAccounts() (*analytics.Accounts, error) {
	return a.service.Management.Accounts.List().Do()
}

func (a *analyticsAPI) ListAccountSummaries() (*analytics.AccountSummaries, error) {
	return a.service.Management.AccountSummaries.List().Do()
}

func (a *analyticsAPI) ListWebProperties(accountID string) (*analytics.Webproperties, error) {
	return a.service.Management.Webproperties.List(accountID).Do()
}

func (a *analyticsAPI) ListProfiles(accountID, propertyID string) (*analytics.Profiles, error) {
	return a.service.Management.Profiles.List(accountID, propertyID).Do()
}

func (a *analyticsAPI) ListAccountUserLinks(accountID string) (*analytics.EntityUserLinks, error) {
	return a.service.Management.AccountUserLinks.List(accountID).Do()
}

func (a *analyticsAPI) ListProfileUserLinks(accountID, propertyID, profileID string) (*analytics.EntityUserLinks, error) {
	return a.service.Management.ProfileUserLinks.List(accountID, propertyID, profileID).Do()
}

func (a *analyticsAPI) InsertProfileUserLink(accountID, propertyID, profileID string, link *analytics.EntityUserLink) (*analytics.EntityUserLink, error) {
	return a.service.Management.ProfileUserLinks.Insert(accountID, propertyID, profileID, link).Do()
}

func (a *analyticsAPI) DeleteProfileUserLink(accountID, propertyID, profileID, linkID string) error {
	return a.service.Management.ProfileUserLinks.Delete(accountID, propertyID, profileID, linkID).Do()
}

// Analytics wraps the Management API with the single-call admin operations.
// Every operation issues exactly one remote call, prints its summary, and on
// failure logs the classified error and returns the zero result. Nothing is
// cached; Google remains the source of truth.
type Analytics struct {
	Config internal.AnalyticsConfig
	API    AnalyticsAPI
}

func NewAnalytics(creds CredentialsConfig, config internal.AnalyticsConfig, scopes ...string) (*Analytics, error) {
	auth, err := creds.resolveAuth()
	if err != nil {
		return nil, err
	}

	if len(scopes) == 0 {
		scopes = []string{ScopeAnalyticsReadonly, ScopeAnalyticsManageUsers}
	}

	service, err := NewAnalyticsService(auth, scopes...)
	if err != nil {
		return nil, err
	}

	return &Analytics{
		Config: config,
		API:    &analyticsAPI{service: service},
	}, nil
}

func (a *Analytics) ListAccounts() []*analytics.Account {
	accounts, err := a.API.ListAccounts()
	if err != nil {
		logCallError("ListAccounts", err)
		return nil
	}

	for _, account := range accounts.Items {
		log.Printf("account: %s (%s)\n", account.Name, account.Id)
	}
	return accounts.Items
}

func (a *Analytics) ListAccountSummaries() []*analytics.AccountSummary {
	summaries, err := a.API.ListAccountSummaries()
	if err != nil {
		logCallError("ListAccountSummaries", err)
		return nil
	}

	for _, summary := range summaries.Items {
		log.Printf("account summary: %s (%s), %v properties\n",
			summary.Name, summary.Id, len(summary.WebProperties))
	}
	return summaries.Items
}

func (a *Analytics) ListWebProperties(accountID string) []*analytics.Webproperty {
	properties, err := a.API.ListWebProperties(accountID)
	if err != nil {
		logCallError("ListWebProperties", err)
		return nil
	}

	for _, property := range properties.Items {
		log.Printf("property: %s (%s)\n", property.Name, property.Id)
	}
	return properties.Items
}

func (a *Analytics) ListViews(accountID, propertyID string) []*analytics.Profile {
	profiles, err := a.API.ListProfiles(accountID, propertyID)
	if err != nil {
		logCallError("ListViews", err)
		return nil
	}

	for _, profile := range profiles.Items {
		log.Printf("view: %s (%s)\n", profile.Name, profile.Id)
	}
	return profiles.Items
}

func (a *Analytics) ListAccountUsers(accountID string) []*analytics.EntityUserLink {
	links, err := a.API.ListAccountUserLinks(accountID)
	if err != nil {
		logCallError("ListAccountUsers", err)
		return nil
	}

	printUserLinks(links.Items)
	return links.Items
}

func (a *Analytics) ListViewUsers(accountID, propertyID, viewID string) []*analytics.EntityUserLink {
	links, err := a.API.ListProfileUserLinks(accountID, propertyID, viewID)
	if err != nil {
		logCallError("ListViewUsers", err)
		return nil
	}

	printUserLinks(links.Items)
	return links.Items
}

// AddViewUser grants email the given local permissions on one view.
func (a *Analytics) AddViewUser(accountID, propertyID, viewID, email string, permissions []string) *analytics.EntityUserLink {
	link := &analytics.EntityUserLink{
		Permissions: &analytics.EntityUserLinkPermissions{
			Local: permissions,
		},
		UserRef: &analytics.UserRef{
			Email: email,
		},
	}

	created, err := a.API.InsertProfileUserLink(accountID, propertyID, viewID, link)
	if err != nil {
		logCallError("AddViewUser", err)
		return nil
	}

	log.Printf("added user %s to view %s, link id %s, permissions: %s\n",
		email, viewID, created.Id, joinPermissions(created.Permissions))
	return created
}

// DeleteViewUser removes one user-link from one view.
func (a *Analytics) DeleteViewUser(accountID, propertyID, viewID, linkID string) bool {
	if err := a.API.DeleteProfileUserLink(accountID, propertyID, viewID, linkID); err != nil {
		logCallError("DeleteViewUser", err)
		return false
	}

	log.Printf("deleted user link %s from view %s\n", linkID, viewID)
	return true
}

func printUserLinks(links []*analytics.EntityUserLink) {
	for _, link := range links {
		email := ""
		if link.UserRef != nil {
			email = link.UserRef.Email
		}
		log.Printf("user link: %s (link %s), permissions: %s\n",
			email, link.Id, joinPermissions(link.Permissions))
	}
}

func joinPermissions(permissions *analytics.EntityUserLinkPermissions) string {
	if permissions == nil {
		return ""
	}
	if len(permissions.Effective) > 0 {
		return strings.Join(permissions.Effective, ", ")
	}
	return strings.Join(permissions.Local, ", ")
}

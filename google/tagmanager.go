package google

import (
	"encoding/json"
	"fmt"
	"log"
	"log/syslog"
	"time"

	tagmanager "google.golang.org/api/tagmanager/v2"

	"github.com/silinternational/analytics-admin/internal"
)

// TagManagerAPI is the narrow Tag Manager v2 surface the admin jobs call.
type TagManagerAPI interface {
	ListContainers(parent string) (*tagmanager.ListContainersResponse, error)
	GetContainer(path string) (*tagmanager.Container, error)
	CreateWorkspace(parent string, workspace *tagmanager.Workspace) (*tagmanager.Workspace, error)
	ListTags(parent string) (*tagmanager.ListTagsResponse, error)
	ListTriggers(parent string) (*tagmanager.ListTriggersResponse, error)
	CreateTag(parent string, tag *tagmanager.Tag) (*tagmanager.Tag, error)
	DeleteTag(path string) error
}

type tagManagerAPI struct {
	service *tagmanager.Service
}

func (t *tagManagerAPI) ListContainers(parent string) (*tagmanager.ListContainersResponse, error) {
	return t.service.Accounts.Containers.List(parent).Do()
}

func (t *tagManagerAPI) GetContainer(path string) (*tagmanager.Container, error) {
	return t.service.Accounts.Containers.Get(path).Do()
}

func (t *tagManagerAPI) CreateWorkspace(parent string, workspace *tagmanager.Workspace) (*tagmanager.Workspace, error) {
	return t.service.Accounts.Containers.Workspaces.Create(parent, workspace).Do()
}

func (t *tagManagerAPI) ListTags(parent string) (*tagmanager.ListTagsResponse, error) {
	return t.service.Accounts.Containers.Workspaces.Tags.List(parent).Do()
}

func (t *tagManagerAPI) ListTriggers(parent string) (*tagmanager.ListTriggersResponse, error) {
	return t.service.Accounts.Containers.Workspaces.Triggers.List(parent).Do()
}

func (t *tagManagerAPI) CreateTag(parent string, tag *tagmanager.Tag) (*tagmanager.Tag, error) {
	return t.service.Accounts.Containers.Workspaces.Tags.Create(parent, tag).Do()
}

func (t *tagManagerAPI) DeleteTag(path string) error {
	return t.service.Accounts.Containers.Workspaces.Tags.Delete(path).Do()
}

// TagManager wraps the Tag Manager API with the single-call admin operations
// and the batched tag create/delete jobs.
type TagManager struct {
	Config internal.TagManagerConfig
	API    TagManagerAPI
}

func NewTagManager(creds CredentialsConfig, config internal.TagManagerConfig, scopes ...string) (*TagManager, error) {
	auth, err := creds.resolveAuth()
	if err != nil {
		return nil, err
	}

	if len(scopes) == 0 {
		scopes = []string{ScopeTagManagerContainers}
	}

	service, err := NewTagManagerService(auth, scopes...)
	if err != nil {
		return nil, err
	}

	if config.DateFormat == "" {
		config.DateFormat = internal.DefaultDateFormat
	}

	return &TagManager{
		Config: config,
		API:    &tagManagerAPI{service: service},
	}, nil
}

func (t *TagManager) accountPath() string {
	return "accounts/" + t.Config.AccountID
}

func (t *TagManager) containerPath() string {
	return fmt.Sprintf("accounts/%s/containers/%s", t.Config.AccountID, t.Config.ContainerID)
}

func (t *TagManager) workspacePath() string {
	return fmt.Sprintf("accounts/%s/containers/%s/workspaces/%s",
		t.Config.AccountID, t.Config.ContainerID, t.Config.WorkspaceID)
}

func (t *TagManager) ListContainers() []*tagmanager.Container {
	containers, err := t.API.ListContainers(t.accountPath())
	if err != nil {
		logCallError("ListContainers", err)
		return nil
	}

	for _, container := range containers.Container {
		log.Printf("container: %s (%s)\n", container.Name, container.PublicId)
	}
	return containers.Container
}

func (t *TagManager) GetContainer() *tagmanager.Container {
	container, err := t.API.GetContainer(t.containerPath())
	if err != nil {
		logCallError("GetContainer", err)
		return nil
	}

	log.Printf("container: %s (%s)\n", container.Name, container.PublicId)
	return container
}

func (t *TagManager) CreateWorkspace(name, description string) *tagmanager.Workspace {
	workspace, err := t.API.CreateWorkspace(t.containerPath(), &tagmanager.Workspace{
		Name:        name,
		Description: description,
	})
	if err != nil {
		logCallError("CreateWorkspace", err)
		return nil
	}

	log.Printf("workspace: %s (%s)\n", workspace.Name, workspace.WorkspaceId)
	return workspace
}

func (t *TagManager) ListTags() []*tagmanager.Tag {
	tags, err := t.API.ListTags(t.workspacePath())
	if err != nil {
		logCallError("ListTags", err)
		return nil
	}

	for _, tag := range tags.Tag {
		log.Printf("tag: %s (%s), type %s\n", tag.Name, tag.TagId, tag.Type)
	}
	return tags.Tag
}

func (t *TagManager) ListTriggers() []*tagmanager.Trigger {
	triggers, err := t.API.ListTriggers(t.workspacePath())
	if err != nil {
		logCallError("ListTriggers", err)
		return nil
	}

	for _, trigger := range triggers.Trigger {
		log.Printf("trigger: %s (%s), type %s\n", trigger.Name, trigger.TriggerId, trigger.Type)
	}
	return triggers.Trigger
}

func (t *TagManager) CreateTag(tag *tagmanager.Tag) *tagmanager.Tag {
	created, err := t.API.CreateTag(t.workspacePath(), tag)
	if err != nil {
		logCallError("CreateTag", err)
		return nil
	}

	log.Printf("created tag: %s (%s)\n", created.Name, created.Path)
	return created
}

func (t *TagManager) DeleteTag(path string) bool {
	if err := t.API.DeleteTag(path); err != nil {
		logCallError("DeleteTag", err)
		return false
	}

	log.Printf("deleted tag: %s\n", path)
	return true
}

type TagParameter struct {
	Key   string
	Type  string
	Value string
}

// TagSpec is one tag to create, with its schedule window as date strings in
// the configured layout (DDMMYYYY by default).
type TagSpec struct {
	Name       string
	Type       string
	Parameters []TagParameter
	StartDate  string
	EndDate    string
}

type CreateTagsJob struct {
	Tags       []TagSpec
	BatchLimit int
}

type DeleteTagsJob struct {
	TagPaths   []string
	BatchLimit int
}

func NewCreateTagsJob(extraJSON json.RawMessage) (CreateTagsJob, error) {
	var job CreateTagsJob
	if err := json.Unmarshal(extraJSON, &job); err != nil {
		return job, fmt.Errorf("unable to unmarshal CreateTags job config, error: %s", err)
	}
	if len(job.Tags) == 0 {
		return job, fmt.Errorf("CreateTags job config is missing a Tags list")
	}
	return job, nil
}

func NewDeleteTagsJob(extraJSON json.RawMessage) (DeleteTagsJob, error) {
	var job DeleteTagsJob
	if err := json.Unmarshal(extraJSON, &job); err != nil {
		return job, fmt.Errorf("unable to unmarshal DeleteTags job config, error: %s", err)
	}
	if len(job.TagPaths) == 0 {
		return job, fmt.Errorf("DeleteTags job config is missing a TagPaths list")
	}
	return job, nil
}

// dateToMs converts a date string in the given layout to milliseconds since
// the Unix epoch at UTC midnight of that day.
func dateToMs(date, layout string) (int64, error) {
	t, err := time.ParseInLocation(layout, date, time.UTC)
	if err != nil {
		return 0, fmt.Errorf("unable to parse date %q with layout %q: %s", date, layout, err)
	}
	epoch := time.Unix(0, 0).UTC()
	return t.Sub(epoch).Milliseconds(), nil
}

// ScheduleWindow converts a start/end date pair to the tag schedule bounds in
// epoch milliseconds.
func ScheduleWindow(startDate, endDate, layout string) (int64, int64, error) {
	startMs, err := dateToMs(startDate, layout)
	if err != nil {
		return 0, 0, err
	}
	endMs, err := dateToMs(endDate, layout)
	if err != nil {
		return 0, 0, err
	}
	return startMs, endMs, nil
}

// BulkCreateTags queues one create per spec, computing each schedule window
// before queueing, then flushes the batch once. A spec list longer than the
// batch limit is executed in full after a warning.
func (t *TagManager) BulkCreateTags(logger *log.Logger, job CreateTagsJob, eventLog chan<- internal.EventLogItem) internal.OpResults {
	batch := internal.NewBatch(job.BatchLimit)
	var results internal.OpResults

	for i, spec := range job.Tags {
		startMs, endMs, err := ScheduleWindow(spec.StartDate, spec.EndDate, t.Config.DateFormat)
		if err != nil {
			eventLog <- internal.EventLogItem{
				Level:   syslog.LOG_ERR,
				Message: fmt.Sprintf("unable to schedule tag %s: %s", spec.Name, err),
			}
			results.Failed++
			continue
		}

		parameters := make([]*tagmanager.Parameter, len(spec.Parameters))
		for j, p := range spec.Parameters {
			parameters[j] = &tagmanager.Parameter{Key: p.Key, Type: p.Type, Value: p.Value}
		}

		tag := &tagmanager.Tag{
			Name:            spec.Name,
			Type:            spec.Type,
			Parameter:       parameters,
			ScheduleStartMs: startMs,
			ScheduleEndMs:   endMs,
		}

		requestID := fmt.Sprintf("tag-%v-%s", i+1, spec.Name)
		batch.Queue(requestID, func() (interface{}, error) {
			return t.API.CreateTag(t.workspacePath(), tag)
		})
	}

	batch.Flush(func(requestID string, response interface{}, err error) {
		if err != nil {
			eventLog <- internal.EventLogItem{
				Level:   syslog.LOG_ERR,
				Message: callErrorMessage("create "+requestID, err),
			}
			results.Failed++
			return
		}

		message := "CreateTag " + requestID
		if created, ok := response.(*tagmanager.Tag); ok && created != nil {
			message = fmt.Sprintf("CreateTag %s (%s)", created.Name, created.Path)
		}
		eventLog <- internal.EventLogItem{Level: syslog.LOG_INFO, Message: message}
		results.Succeeded++
	})

	logger.Printf("BulkCreateTags finished: %v created, %v failed\n", results.Succeeded, results.Failed)
	return results
}

// BulkDeleteTags queues one delete per tag path and flushes the batch once.
func (t *TagManager) BulkDeleteTags(logger *log.Logger, job DeleteTagsJob, eventLog chan<- internal.EventLogItem) internal.OpResults {
	batch := internal.NewBatch(job.BatchLimit)
	var results internal.OpResults

	for _, path := range job.TagPaths {
		tagPath := path
		batch.Queue(tagPath, func() (interface{}, error) {
			return nil, t.API.DeleteTag(tagPath)
		})
	}

	batch.Flush(func(requestID string, _ interface{}, err error) {
		if err != nil {
			eventLog <- internal.EventLogItem{
				Level:   syslog.LOG_ERR,
				Message: callErrorMessage("delete "+requestID, err),
			}
			results.Failed++
			return
		}

		eventLog <- internal.EventLogItem{Level: syslog.LOG_INFO, Message: "DeleteTag " + requestID}
		results.Succeeded++
	})

	logger.Printf("BulkDeleteTags finished: %v deleted, %v failed\n", results.Succeeded, results.Failed)
	return results
}

package analytics_admin

import (
	"errors"
	"fmt"
	"log"
	"log/syslog"
	"os"
	"strings"
	"time"

	"github.com/silinternational/analytics-admin/alert"
	"github.com/silinternational/analytics-admin/google"
	"github.com/silinternational/analytics-admin/internal"
)

// Run loads the app config and executes its job list in order. Job failures
// are logged and collected for one alert email; Run itself only returns an
// error for a broken environment, so the process still exits cleanly after
// logging, the way the admin scripts always have.
func Run(configFile string) error {
	log.SetOutput(os.Stdout)
	log.SetFlags(0)
	log.Printf("Analytics admin started at %s", time.Now().UTC().Format(time.RFC1123Z))

	rawConfig, err := internal.LoadConfig(configFile)
	if err != nil {
		log.Printf("Unable to load config, error: %s", err)
		return nil
	}

	config, err := internal.ReadConfig(rawConfig)
	if err != nil {
		msg := fmt.Sprintf("Unable to read config, error: %s", err)
		log.Println(msg)
		alert.SendEmail(config.Alert, msg)
		return nil
	}

	creds, err := google.ReadCredentialsConfig(config.Google)
	if err != nil {
		msg := fmt.Sprintf("Unable to read Google credentials, error: %s", err)
		log.Println(msg)
		alert.SendEmail(config.Alert, msg)
		return nil
	}

	runner := &jobRunner{config: config, creds: creds}

	maxNameLength := config.MaxJobNameLength()
	var alertList []string

	for i, job := range config.Jobs {
		if job.Disable {
			continue
		}

		if job.Name == "" {
			alertList = append(alertList, "configuration contains a job with no name")
		}
		prefix := fmt.Sprintf("[ %-*s ] ", maxNameLength, job.Name)
		jobLogger := log.New(os.Stdout, prefix, 0)
		jobLogger.Printf("(%v/%v) Beginning job", i+1, len(config.Jobs))

		if err := runner.run(jobLogger, job); err != nil {
			err = fmt.Errorf(`Job "%s" failed with error: %w`, job.Name, err)
			alertList = handleJobError(jobLogger, err, alertList)
		}
	}

	if len(alertList) > 0 {
		alert.SendEmail(config.Alert, fmt.Sprintf("Job error(s):\n%s", strings.Join(alertList, "\n")))
	}

	log.Printf("Analytics admin completed at %s", time.Now().UTC().Format(time.RFC1123Z))
	return nil
}

func handleJobError(logger *log.Logger, err error, alertList []string) []string {
	logger.Println(err)

	var jobError internal.JobError
	if isJobError := errors.As(err, &jobError); !isJobError || jobError.SendAlert {
		alertList = append(alertList, err.Error())
	}
	return alertList
}

// jobRunner holds the lazily initialized API clients; a config whose jobs
// never touch Tag Manager never builds a Tag Manager client, and vice versa.
type jobRunner struct {
	config     internal.AppConfig
	creds      google.CredentialsConfig
	analytics  *google.Analytics
	tagManager *google.TagManager
}

func (r *jobRunner) getAnalytics() (*google.Analytics, error) {
	if r.analytics == nil {
		a, err := google.NewAnalytics(r.creds, r.config.Analytics)
		if err != nil {
			return nil, fmt.Errorf("unable to initialize Analytics service, error: %w", err)
		}
		r.analytics = a
	}
	return r.analytics, nil
}

func (r *jobRunner) getTagManager() (*google.TagManager, error) {
	if r.tagManager == nil {
		t, err := google.NewTagManager(r.creds, r.config.TagManager)
		if err != nil {
			return nil, fmt.Errorf("unable to initialize Tag Manager service, error: %w", err)
		}
		r.tagManager = t
	}
	return r.tagManager, nil
}

func (r *jobRunner) run(logger *log.Logger, job internal.Job) error {
	eventLog := make(chan internal.EventLogItem, 50)
	go processEventLog(logger, r.config.Alert, eventLog)
	defer func() {
		time.Sleep(time.Millisecond * 10)
		close(eventLog)
	}()

	dryRun := r.config.Runtime.DryRun

	switch job.Type {
	case internal.JobTypeAddUsers:
		addJob, err := google.NewAddUsersJob(job.ExtraJSON)
		if err != nil {
			return err
		}
		if dryRun {
			logger.Printf("DryRun: would add %v emails to %v views",
				len(addJob.Emails), max(len(addJob.ViewIDs), 1))
			return nil
		}
		a, err := r.getAnalytics()
		if err != nil {
			return err
		}
		a.BulkAddUsers(logger, addJob, eventLog)

	case internal.JobTypeDeleteUsers:
		deleteJob, err := google.NewDeleteUsersJob(job.ExtraJSON)
		if err != nil {
			return err
		}
		if dryRun {
			logger.Printf("DryRun: would remove %v emails from every visible account", len(deleteJob.Emails))
			return nil
		}
		a, err := r.getAnalytics()
		if err != nil {
			return err
		}
		if _, err := a.BulkDeleteUsers(logger, deleteJob, r.config.Runtime.MaxConcurrency, eventLog); err != nil {
			return err
		}

	case internal.JobTypeCreateTags:
		createJob, err := google.NewCreateTagsJob(job.ExtraJSON)
		if err != nil {
			return err
		}
		if dryRun {
			logger.Printf("DryRun: would create %v tags", len(createJob.Tags))
			return nil
		}
		t, err := r.getTagManager()
		if err != nil {
			return err
		}
		t.BulkCreateTags(logger, createJob, eventLog)

	case internal.JobTypeDeleteTags:
		deleteJob, err := google.NewDeleteTagsJob(job.ExtraJSON)
		if err != nil {
			return err
		}
		if dryRun {
			logger.Printf("DryRun: would delete %v tags", len(deleteJob.TagPaths))
			return nil
		}
		t, err := r.getTagManager()
		if err != nil {
			return err
		}
		t.BulkDeleteTags(logger, deleteJob, eventLog)

	case internal.JobTypeListEntities:
		return r.listEntities(logger)

	default:
		return fmt.Errorf("unrecognized job type %q", job.Type)
	}

	return nil
}

// listEntities prints what the credential can see under the configured scope,
// exercising only read calls.
func (r *jobRunner) listEntities(logger *log.Logger) error {
	if r.config.Analytics.AccountID != "" {
		a, err := r.getAnalytics()
		if err != nil {
			return err
		}
		logger.Println("Analytics account users:")
		a.ListAccountUsers(r.config.Analytics.AccountID)
		if r.config.Analytics.PropertyID != "" {
			logger.Println("Analytics views:")
			a.ListViews(r.config.Analytics.AccountID, r.config.Analytics.PropertyID)
		}
	}

	if r.config.TagManager.AccountID != "" {
		t, err := r.getTagManager()
		if err != nil {
			return err
		}
		logger.Println("Tag Manager containers:")
		t.ListContainers()
		if r.config.TagManager.WorkspaceID != "" {
			logger.Println("Tag Manager tags:")
			t.ListTags()
			logger.Println("Tag Manager triggers:")
			t.ListTriggers()
		}
	}

	return nil
}

func processEventLog(logger *log.Logger, config alert.Config, eventLog <-chan internal.EventLogItem) {
	for msg := range eventLog {
		logger.Println(msg)
		if msg.Level == syslog.LOG_ALERT || msg.Level == syslog.LOG_EMERG {
			alert.SendEmail(config, msg.String())
		}
	}
}

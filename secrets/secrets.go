// Package secrets fetches the service-account key object from an S3 bucket
// for deployments where the key does not live on a filesystem.
package secrets

import (
	"context"
	"fmt"
	"io/ioutil"
	"log"
	"sort"
	"strings"

	"github.com/Jeffail/gabs/v2"
	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/silinternational/analytics-admin/google"
)

const DefaultSecretsKey = "client_secrets.json"

// ObjectGetter is the one S3 call this package makes.
type ObjectGetter interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

func NewS3Client(ctx context.Context, region string) (*s3.Client, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("AWS SDK LoadDefaultConfig failed: %w", err)
	}
	if region != "" {
		cfg.Region = region
	}
	return s3.NewFromConfig(cfg), nil
}

// Fetch downloads one object from the bucket. An empty key falls back to the
// conventional client_secrets.json.
func Fetch(ctx context.Context, client ObjectGetter, bucket, key string) ([]byte, error) {
	if key == "" {
		key = DefaultSecretsKey
	}

	output, err := client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("unable to get object %s from bucket %s, error: %w", key, bucket, err)
	}
	defer output.Body.Close()

	data, err := ioutil.ReadAll(output.Body)
	if err != nil {
		return nil, fmt.Errorf("unable to read object %s from bucket %s, error: %w", key, bucket, err)
	}
	return data, nil
}

// ParseGoogleAuth decodes a fetched secrets object into a GoogleAuth and logs
// what arrived (field names and the non-sensitive identifiers only).
func ParseGoogleAuth(data []byte) (google.GoogleAuth, error) {
	parsed, err := gabs.ParseJSON(data)
	if err != nil {
		return google.GoogleAuth{}, fmt.Errorf("unable to parse secrets object, error: %w", err)
	}

	fields := parsed.ChildrenMap()
	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}
	sort.Strings(names)

	log.Printf("secrets object loaded with fields: %s", strings.Join(names, ", "))
	if email, ok := parsed.Path("client_email").Data().(string); ok {
		log.Printf("secrets object is for %s (project %v)", email, parsed.Path("project_id").Data())
	}

	for _, required := range []string{"client_email", "private_key"} {
		if !parsed.ExistsP(required) {
			return google.GoogleAuth{}, fmt.Errorf("secrets object is missing the %s field", required)
		}
	}

	return google.AuthFromJSON(data)
}

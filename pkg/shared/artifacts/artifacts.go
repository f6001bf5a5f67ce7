package artifacts

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"
	"github.com/hashicorp/go-hclog"

	"github.com/scan-io-git/scanio-agent/pkg/shared/config"
	"github.com/scan-io-git/scanio-agent/pkg/shared/files"
)

// GetArtifactName build returns artifact name.
// Example: scan_semgrep_2025-09-15T08:28:46Z.scanio-artifact.
func GetArtifactName(command, plugin string, t time.Time) string {
	ts := t.UTC().Format(time.RFC3339)
	metaDataFileName := fmt.Sprintf("%s_%s_%s.scanio-artifact", command, plugin, ts)
	return metaDataFileName
}

// SaveArtifactJSON writes the provided result to <artifacts>/<base>.json.
// Returns full path.
func SaveArtifactJSON(cfg *config.Config, logger hclog.Logger, command, plugin string, result interface{}) (string, error) {
	dir := config.GetArtifactsHome(cfg)
	if err := files.CreateFolderIfNotExists(dir); err != nil {
		return "", err
	}
	base := GetArtifactName(command, plugin, time.Now())
	path := filepath.Join(dir, base+".json")

	resultData, err := json.MarshalIndent(result, "", "    ")
	if err != nil {
		return path, fmt.Errorf("error marshaling the result data: %w", err)
	}

	if err := files.WriteJsonFile(path, resultData); err != nil {
		return path, fmt.Errorf("error writing result to log file: %w", err)
	}
	logger.Info("artifact saved to file", "path", path)

	return path, nil
}

// UploadToS3 pushes a saved artifact to the configured bucket. A run without
// an s3_bucket setting skips the upload entirely.
func UploadToS3(cfg *config.Config, logger hclog.Logger, path string) error {
	if cfg == nil || cfg.Artifacts.S3Bucket == "" {
		return nil
	}

	sess, err := session.NewSession(&aws.Config{
		Region: aws.String(config.SetThen(cfg.Artifacts.S3Region, "us-east-1")),
	})
	if err != nil {
		return fmt.Errorf("failed to create aws session: %w", err)
	}
	uploader := s3manager.NewUploader(sess)

	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open artifact %q: %w", path, err)
	}
	defer f.Close()

	key := filepath.Join("scanio-agent", filepath.Base(path))
	result, err := uploader.Upload(&s3manager.UploadInput{
		Bucket: aws.String(cfg.Artifacts.S3Bucket),
		Key:    aws.String(key),
		Body:   f,
	})
	if err != nil {
		return fmt.Errorf("failed to upload artifact to s3: %w", err)
	}
	logger.Info("artifact uploaded", "bucket", cfg.Artifacts.S3Bucket, "key", key, "location", result.Location)
	return nil
}

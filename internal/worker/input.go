package worker

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/gabriel-vasile/mimetype"

	"github.com/lexara-six/ingestion/internal/domain"
)

// InputSpec is the job config's "input" block: at least one of FilePath,
// URL, or Bucket+Key must be set, matching the three source shapes a job
// config can name. When several are set, Acquire uses FilePath first, then
// URL, then Bucket+Key.
type InputSpec struct {
	FilePath string
	URL      string
	Bucket   string
	Key      string
}

// ParseInputSpec reads the input block out of a job's decoded config map.
func ParseInputSpec(config map[string]any) (InputSpec, error) {
	raw, _ := config["input"].(map[string]any)
	var spec InputSpec
	if v, ok := raw["file_path"].(string); ok {
		spec.FilePath = v
	}
	if v, ok := raw["url"].(string); ok {
		spec.URL = v
	}
	if v, ok := raw["bucket"].(string); ok {
		spec.Bucket = v
	}
	if v, ok := raw["key"].(string); ok {
		spec.Key = v
	}
	if spec.FilePath == "" && spec.URL == "" && (spec.Bucket == "" || spec.Key == "") {
		return InputSpec{}, fmt.Errorf("op=worker.parse_input_spec: %w: job config names no usable input", domain.ErrInvalidArgument)
	}
	return spec, nil
}

// Acquire resolves spec to a local file path the loader registry can open.
// A local file_path is used in place; an HTTPS URL or S3 object is
// downloaded into a temp file named with the original extension so
// extension-sniffing loaders (CSV vs JSON) still work. cleanup is a no-op
// for the in-place case and removes the temp file otherwise; callers should
// always defer it.
func Acquire(ctx domain.Context, s3Client *s3.Client, httpClient *http.Client, spec InputSpec) (path string, cleanup func(), err error) {
	noop := func() {}

	switch {
	case spec.FilePath != "":
		return spec.FilePath, noop, nil

	case spec.URL != "":
		tmp, err := downloadToTemp(ctx, httpClient, spec.URL)
		if err != nil {
			return "", noop, fmt.Errorf("op=worker.acquire.url: %w", err)
		}
		return tmp, func() { _ = os.Remove(tmp) }, nil

	default:
		tmp, err := downloadS3ToTemp(ctx, s3Client, spec.Bucket, spec.Key)
		if err != nil {
			return "", noop, fmt.Errorf("op=worker.acquire.s3: %w", err)
		}
		return tmp, func() { _ = os.Remove(tmp) }, nil
	}
}

func downloadToTemp(ctx domain.Context, client *http.Client, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("new request: %w", err)
	}
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Minute}
	}
	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("get %q: %w", url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("get %q: unexpected status %d", url, resp.StatusCode)
	}
	return writeTemp(resp.Body, filepath.Ext(url))
}

func downloadS3ToTemp(ctx domain.Context, client *s3.Client, bucket, key string) (string, error) {
	if client == nil {
		return "", fmt.Errorf("s3 client not configured")
	}
	out, err := client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return "", fmt.Errorf("get object s3://%s/%s: %w", bucket, key, err)
	}
	defer out.Body.Close()
	return writeTemp(out.Body, filepath.Ext(key))
}

// writeTemp drains r into a temp file. When the caller couldn't infer an
// extension from the URL or S3 key (no suffix, or an ambiguous one), it
// sniffs the content's magic bytes via mimetype and renames the file to
// match, so the loader registry's CSV/JSON dispatch still sees a usable
// suffix.
func writeTemp(r io.Reader, ext string) (string, error) {
	f, err := os.CreateTemp("", "ingestion-input-*.tmp")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		_ = os.Remove(f.Name())
		return "", fmt.Errorf("write temp file: %w", err)
	}
	f.Close()

	if !isRecognizedExt(ext) {
		if detected, mErr := mimetype.DetectFile(f.Name()); mErr == nil {
			ext = mimeToExt(detected.String())
		}
	}
	if !isRecognizedExt(ext) {
		ext = ".dat"
	}

	final := strings.TrimSuffix(f.Name(), ".tmp") + ext
	if err := os.Rename(f.Name(), final); err != nil {
		_ = os.Remove(f.Name())
		return "", fmt.Errorf("rename temp file: %w", err)
	}
	return final, nil
}

func isRecognizedExt(ext string) bool {
	switch strings.ToLower(ext) {
	case ".csv", ".json", ".jsonl":
		return true
	default:
		return false
	}
}

func mimeToExt(mime string) string {
	switch {
	case strings.Contains(mime, "json"):
		return ".json"
	case strings.Contains(mime, "csv"):
		return ".csv"
	default:
		return ""
	}
}

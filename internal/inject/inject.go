package inject

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/cloudfront"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/dmorgan81/imagestudio/internal/batch"
	"github.com/dmorgan81/imagestudio/internal/credential"
	"github.com/dmorgan81/imagestudio/internal/handler"
	"github.com/dmorgan81/imagestudio/internal/image"
	"github.com/dmorgan81/imagestudio/internal/log"
	"github.com/dmorgan81/imagestudio/internal/page"
	"github.com/dmorgan81/imagestudio/internal/param"
	"github.com/dmorgan81/imagestudio/internal/store"
	"github.com/dmorgan81/imagestudio/internal/view"
	"github.com/samber/do"
	"github.com/samber/lo"
)

func getenv(key, fallback string) string {
	return lo.Ternary(os.Getenv(key) != "", os.Getenv(key), fallback)
}

func duration(key, fallback string) func(*do.Injector) (time.Duration, error) {
	return func(*do.Injector) (time.Duration, error) {
		d, err := time.ParseDuration(getenv(key, fallback))
		if err != nil {
			return 0, fmt.Errorf("%s: %w", key, err)
		}
		return d, nil
	}
}

func newInjector(ctx context.Context, buildKey string) *do.Injector {
	log := log.FromContextOrDiscard(ctx)

	injector := do.NewWithOpts(&do.InjectorOpts{
		Logf: func(format string, args ...any) {
			log.Debug(fmt.Sprintf(format, args...))
		},
	})

	do.ProvideNamedValue[string](injector, "build_key", buildKey)
	do.ProvideNamedValue[string](injector, "hf_api_url", getenv("HF_API_URL", image.DefaultEndpoint))
	do.ProvideNamed[time.Duration](injector, "http_timeout", duration("HTTP_TIMEOUT", "0s"))
	do.Provide[*http.Client](injector, func(i *do.Injector) (*http.Client, error) {
		timeout := do.MustInvokeNamed[time.Duration](i, "http_timeout")
		return lo.Ternary(timeout > 0, &http.Client{Timeout: timeout}, http.DefaultClient), nil
	})

	do.Provide[image.Generator](injector, image.NewHuggingFaceGenerator)
	do.Provide[*batch.Orchestrator](injector, batch.NewOrchestrator)
	do.Provide[*page.Templator](injector, page.NewTemplator)
	do.Provide[*view.Gallery](injector, view.NewInjectedGallery)
	do.Provide[*handler.Handler](injector, handler.NewHandler)

	return injector
}

// Setup wires the Lambda deployment: the key lives in Parameter Store and
// results go to S3 behind CloudFront.
func Setup(ctx context.Context, buildKey string) *do.Injector {
	injector := newInjector(ctx, buildKey)

	do.Provide[aws.Config](injector, func(i *do.Injector) (aws.Config, error) {
		return config.LoadDefaultConfig(ctx)
	})
	do.Provide[*ssm.Client](injector, func(i *do.Injector) (*ssm.Client, error) {
		return ssm.NewFromConfig(do.MustInvoke[aws.Config](i)), nil
	})
	do.Provide[*s3.Client](injector, func(i *do.Injector) (*s3.Client, error) {
		return s3.NewFromConfig(do.MustInvoke[aws.Config](i)), nil
	})
	do.Provide[*cloudfront.Client](injector, func(i *do.Injector) (*cloudfront.Client, error) {
		return cloudfront.NewFromConfig(do.MustInvoke[aws.Config](i)), nil
	})

	do.Provide[credential.Store](injector, param.NewParameterStore)
	do.Provide[*store.S3Store](injector, store.NewS3Store)
	do.Provide[store.Uploader](injector, func(i *do.Injector) (store.Uploader, error) {
		return do.MustInvoke[*store.S3Store](i), nil
	})
	do.Provide[store.Linker](injector, func(i *do.Injector) (store.Linker, error) {
		return do.MustInvoke[*store.S3Store](i), nil
	})
	do.Provide[store.Releaser](injector, func(i *do.Injector) (store.Releaser, error) {
		return do.MustInvoke[*store.S3Store](i), nil
	})
	do.Provide[store.Reader](injector, func(i *do.Injector) (store.Reader, error) {
		return do.MustInvoke[*store.S3Store](i), nil
	})
	do.Provide[store.Invalidator](injector, store.NewInvalidator)

	do.ProvideNamedValue[string](injector, "hf_key_param", getenv("HF_KEY_PARAM", "/imagestudio/hf_api_key"))
	do.ProvideNamedValue[string](injector, "bucket", os.Getenv("BUCKET"))
	do.ProvideNamedValue[string](injector, "distribution", os.Getenv("DISTRIBUTION"))
	do.ProvideNamed[time.Duration](injector, "link_ttl", duration("LINK_TTL", "1h"))

	return injector
}

// Local wires the CLI: the key is kept in settingsPath and results are written
// below outDir.
func Local(ctx context.Context, buildKey, settingsPath, outDir string) *do.Injector {
	injector := newInjector(ctx, buildKey)

	files := &store.FileUploader{Dir: outDir}
	do.ProvideValue[credential.Store](injector, &credential.FileStore{Path: settingsPath})
	do.ProvideValue[store.Uploader](injector, files)
	do.ProvideValue[store.Linker](injector, files)
	do.ProvideValue[store.Releaser](injector, files)
	do.ProvideValue[store.Reader](injector, files)
	do.ProvideValue[store.Invalidator](injector, store.NoopInvalidator{})

	return injector
}

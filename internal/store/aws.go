package store

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/service/cloudfront"
	cftypes "github.com/aws/aws-sdk-go-v2/service/cloudfront/types"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/dmorgan81/imagestudio/internal/log"
	"github.com/samber/do"
	"github.com/samber/lo"
)

type S3API interface {
	GetObject(context.Context, *s3.GetObjectInput, ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(context.Context, *s3.PutObjectInput, ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObjects(context.Context, *s3.DeleteObjectsInput, ...func(*s3.Options)) (*s3.DeleteObjectsOutput, error)
}

type PresignAPI interface {
	PresignGetObject(context.Context, *s3.GetObjectInput, ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error)
}

type S3Store struct {
	Client  S3API
	Presign PresignAPI
	Bucket  string
	TTL     time.Duration
}

func NewS3Store(i *do.Injector) (*S3Store, error) {
	client := do.MustInvoke[*s3.Client](i)
	return &S3Store{
		Client:  client,
		Presign: s3.NewPresignClient(client),
		Bucket:  do.MustInvokeNamed[string](i, "bucket"),
		TTL:     do.MustInvokeNamed[time.Duration](i, "link_ttl"),
	}, nil
}

func (u *S3Store) Upload(ctx context.Context, params UploadParams) error {
	log := log.FromContextOrDiscard(ctx).WithGroup("s3").With(
		"name", params.Name,
		"content-type", params.ContentType,
		"metadata", params.Metadata,
		"bucket", u.Bucket,
	)
	log.Info("uploading to s3")

	_, err := u.Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:       aws.String(u.Bucket),
		Key:          aws.String(params.Name),
		ContentType:  aws.String(params.ContentType),
		Body:         bytes.NewReader(params.Data),
		Metadata:     params.Metadata,
		StorageClass: s3types.StorageClassIntelligentTiering,
	})
	return err
}

func (u *S3Store) Read(ctx context.Context, name string) ([]byte, error) {
	log := log.FromContextOrDiscard(ctx).WithGroup("s3").With("name", name, "bucket", u.Bucket)
	log.Debug("reading from s3")

	out, err := u.Client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(u.Bucket),
		Key:    aws.String(name),
	})
	var noSuchKey *s3types.NoSuchKey
	if errors.As(err, &noSuchKey) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	defer out.Body.Close()
	return io.ReadAll(out.Body)
}

func (u *S3Store) Release(ctx context.Context, names []string) error {
	if len(names) == 0 {
		return nil
	}
	log := log.FromContextOrDiscard(ctx).WithGroup("s3").With("names", names, "bucket", u.Bucket)
	log.Info("deleting from s3")

	out, err := u.Client.DeleteObjects(ctx, &s3.DeleteObjectsInput{
		Bucket: aws.String(u.Bucket),
		Delete: &s3types.Delete{
			Objects: lo.Map(names, func(name string, _ int) s3types.ObjectIdentifier {
				return s3types.ObjectIdentifier{Key: aws.String(name)}
			}),
		},
	})
	if err != nil {
		return err
	}
	if len(out.Errors) > 0 {
		e := out.Errors[0]
		return fmt.Errorf("delete %s: %s", aws.ToString(e.Key), aws.ToString(e.Message))
	}
	return nil
}

func (u *S3Store) Link(ctx context.Context, name, filename string) (string, error) {
	log := log.FromContextOrDiscard(ctx).WithGroup("s3").With("name", name, "ttl", u.TTL)
	log.Debug("presigning download link")

	req, err := u.Presign.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket:                     aws.String(u.Bucket),
		Key:                        aws.String(name),
		ResponseContentDisposition: aws.String(fmt.Sprintf("attachment; filename=%q", filename)),
	}, s3.WithPresignExpires(u.TTL))
	if err != nil {
		return "", err
	}
	return req.URL, nil
}

type CloudFrontAPI interface {
	CreateInvalidation(context.Context, *cloudfront.CreateInvalidationInput, ...func(*cloudfront.Options)) (*cloudfront.CreateInvalidationOutput, error)
}

type CloudFrontInvalidator struct {
	Client       CloudFrontAPI
	Distribution string
}

// NewInvalidator falls back to a no-op when no distribution is configured.
func NewInvalidator(i *do.Injector) (Invalidator, error) {
	distribution := do.MustInvokeNamed[string](i, "distribution")
	if distribution == "" {
		return NoopInvalidator{}, nil
	}
	return &CloudFrontInvalidator{
		Client:       do.MustInvoke[*cloudfront.Client](i),
		Distribution: distribution,
	}, nil
}

func (i *CloudFrontInvalidator) Invalidate(ctx context.Context, paths []string) error {
	log := log.FromContextOrDiscard(ctx).WithGroup("cloudfront").With("paths", paths, "distribution", i.Distribution)
	log.Info("invalidating paths in cloudfront")

	_, err := i.Client.CreateInvalidation(ctx, &cloudfront.CreateInvalidationInput{
		DistributionId: aws.String(i.Distribution),
		InvalidationBatch: &cftypes.InvalidationBatch{
			CallerReference: aws.String(time.Now().UTC().Format("20060102150405.000000000")),
			Paths: &cftypes.Paths{
				Quantity: aws.Int32(int32(len(paths))),
				Items:    paths,
			},
		},
	})
	return err
}

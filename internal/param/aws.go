package param

import (
	"context"
	"errors"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/aws/aws-sdk-go-v2/service/ssm/types"
	"github.com/dmorgan81/imagestudio/internal/credential"
	"github.com/dmorgan81/imagestudio/internal/log"
	"github.com/samber/do"
)

// ParameterStore persists the API key as a SecureString parameter.
type ParameterStore struct {
	client API
	path   string
}

func New(client API, path string) *ParameterStore {
	return &ParameterStore{client, path}
}

func NewParameterStore(i *do.Injector) (credential.Store, error) {
	return New(do.MustInvoke[*ssm.Client](i), do.MustInvokeNamed[string](i, "hf_key_param")), nil
}

func (s *ParameterStore) Load(ctx context.Context) (string, error) {
	log := log.FromContextOrDiscard(ctx).WithGroup("parameter store").With("path", s.path)
	log.Info("fetching api key")

	out, err := s.client.GetParameter(ctx, &ssm.GetParameterInput{
		Name:           aws.String(s.path),
		WithDecryption: aws.Bool(true),
	})
	var notFound *types.ParameterNotFound
	if errors.As(err, &notFound) {
		return "", credential.ErrNotFound
	}
	if err != nil {
		return "", err
	}
	return aws.ToString(out.Parameter.Value), nil
}

func (s *ParameterStore) Save(ctx context.Context, key string) error {
	log := log.FromContextOrDiscard(ctx).WithGroup("parameter store").With("path", s.path)
	log.Info("storing api key")

	_, err := s.client.PutParameter(ctx, &ssm.PutParameterInput{
		Name:      aws.String(s.path),
		Value:     aws.String(key),
		Type:      types.ParameterTypeSecureString,
		Overwrite: aws.Bool(true),
	})
	return err
}

func (s *ParameterStore) Clear(ctx context.Context) error {
	log := log.FromContextOrDiscard(ctx).WithGroup("parameter store").With("path", s.path)
	log.Info("deleting api key")

	_, err := s.client.DeleteParameter(ctx, &ssm.DeleteParameterInput{
		Name: aws.String(s.path),
	})
	var notFound *types.ParameterNotFound
	if errors.As(err, &notFound) {
		return nil
	}
	return err
}

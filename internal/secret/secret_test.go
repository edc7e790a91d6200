package secret

import (
	"context"
	"testing"

	vault "github.com/hashicorp/vault/api"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/suite"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes/fake"
)

const credentials = `{"accessKeyId":"AK","secretAccessKey":"SK"}`

type fakeReader struct {
	secret   *vault.Secret
	err      error
	lastPath string
}

func (f *fakeReader) ReadWithContext(_ context.Context, path string) (*vault.Secret, error) {
	f.lastPath = path
	return f.secret, f.err
}

type SecretSuite struct {
	suite.Suite
	ctx context.Context
}

func TestSecretSuite(t *testing.T) {
	suite.Run(t, new(SecretSuite))
}

func (s *SecretSuite) SetupTest() {
	s.ctx = context.Background()
}

func (s *SecretSuite) TestLiteralValuePassesThrough() {
	v, err := Value(s.ctx, nil, credentials)
	s.Require().NoError(err)
	s.Equal(credentials, v)
}

func (s *SecretSuite) TestEnvReference() {
	s.T().Setenv("OUTPUT_BUCKET_KEYS", credentials)
	r, err := NewResolver(Config{})
	s.Require().NoError(err)

	v, err := Value(s.ctx, r, "secret://env/OUTPUT_BUCKET_KEYS")
	s.Require().NoError(err)
	s.Equal(credentials, v)

	s.T().Setenv("BUCKET_KEYS", "joined")
	v, err = r.Resolve(s.ctx, "secret://env/BUCKET/KEYS")
	s.Require().NoError(err)
	s.Equal("joined", v)

	_, err = r.Resolve(s.ctx, "secret://env/NOT_SET_ANYWHERE")
	s.Error(err)
}

func (s *SecretSuite) TestUnconfiguredProvider() {
	r, err := NewResolver(Config{})
	s.Require().NoError(err)
	s.Equal([]string{"env"}, r.Providers())

	_, err = r.Resolve(s.ctx, "secret://vault/kv/bucket/credentials")
	s.ErrorContains(err, "not configured")

	_, err = Value(s.ctx, nil, "secret://env/X")
	s.Error(err)
}

func (s *SecretSuite) TestVaultKVv2() {
	reader := &fakeReader{secret: &vault.Secret{Data: map[string]any{
		"data": map[string]any{"credentials": credentials},
	}}}
	r := &VaultResolver{reader: reader}

	v, err := r.Resolve(s.ctx, "secret://vault/kv/data/protocaas?field=credentials")
	s.Require().NoError(err)
	s.Equal(credentials, v)
	s.Equal("kv/data/protocaas", reader.lastPath)

	v, err = r.Resolve(s.ctx, "secret://vault/kv/data/protocaas/credentials")
	s.Require().NoError(err)
	s.Equal(credentials, v)
}

func (s *SecretSuite) TestVaultFailures() {
	r := &VaultResolver{reader: &fakeReader{err: errors.New("boom")}}
	_, err := r.Resolve(s.ctx, "secret://vault/kv/x?field=y")
	s.Error(err)

	r = &VaultResolver{reader: &fakeReader{}}
	_, err = r.Resolve(s.ctx, "secret://vault/kv/x?field=y")
	s.ErrorContains(err, "not found")

	_, err = r.Resolve(s.ctx, "secret://vault")
	s.Error(err)

	_, err = NewVaultResolver(VaultConfig{})
	s.Error(err)
}

func (s *SecretSuite) TestKubernetesSecret() {
	client := fake.NewClientset(&corev1.Secret{
		ObjectMeta: metav1.ObjectMeta{Name: "bucket", Namespace: "protocaas"},
		Data:       map[string][]byte{"credentials": []byte(credentials)},
	})
	r := NewKubernetesResolver(KubernetesConfig{Namespace: "protocaas"})
	r.client = client

	v, err := r.Resolve(s.ctx, "secret://k8s/bucket/credentials")
	s.Require().NoError(err)
	s.Equal(credentials, v)

	v, err = r.Resolve(s.ctx, "secret://kubernetes/protocaas/bucket/credentials")
	s.Require().NoError(err)
	s.Equal(credentials, v)

	_, err = r.Resolve(s.ctx, "secret://k8s/bucket/missing")
	s.ErrorContains(err, "missing key")

	_, err = r.Resolve(s.ctx, "secret://k8s/onlyone")
	s.Error(err)
}

func (s *SecretSuite) TestWrongProvider() {
	_, err := EnvResolver{}.Resolve(s.ctx, "secret://vault/a/b")
	s.Error(err)

	_, err = Parse("http://env/X")
	s.Error(err)
}

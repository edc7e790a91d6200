package secret

import (
	"context"
	"strings"
	"sync"

	"github.com/pkg/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/clientcmd"
)

const providerKubernetes = "k8s"

type KubernetesConfig struct {
	KubeConfigPath string
	Namespace      string
}

// KubernetesResolver reads keys of Secret objects. The client is built
// lazily so a misconfigured cluster only fails requests that need it.
type KubernetesResolver struct {
	config KubernetesConfig
	once   sync.Once
	client kubernetes.Interface
	err    error
}

func NewKubernetesResolver(cfg KubernetesConfig) *KubernetesResolver {
	if cfg.Namespace == "" {
		cfg.Namespace = "default"
	}
	return &KubernetesResolver{config: cfg}
}

func (r *KubernetesResolver) Resolve(ctx context.Context, ref string) (string, error) {
	parsed, err := expectProvider(ref, providerKubernetes, "kubernetes")
	if err != nil {
		return "", err
	}

	namespace := r.config.Namespace
	var name, key string
	switch s := parsed.Segments; len(s) {
	case 2:
		name, key = s[0], s[1]
	case 3:
		namespace, name, key = s[0], s[1], s[2]
	default:
		return "", errors.Errorf("kubernetes secret reference %q must be secret://k8s/[<namespace>/]<name>/<key>", ref)
	}

	client, err := r.clientset()
	if err != nil {
		return "", err
	}
	obj, err := client.CoreV1().Secrets(namespace).Get(ctx, name, metav1.GetOptions{})
	if err != nil {
		return "", errors.Wrapf(err, "load kubernetes secret %s/%s", namespace, name)
	}
	value, ok := obj.Data[key]
	if !ok {
		return "", errors.Errorf("kubernetes secret %s/%s missing key %s", namespace, name, key)
	}
	return string(value), nil
}

func (r *KubernetesResolver) clientset() (kubernetes.Interface, error) {
	r.once.Do(func() {
		if r.client != nil {
			return
		}
		var cfg *rest.Config
		if strings.TrimSpace(r.config.KubeConfigPath) != "" {
			cfg, r.err = clientcmd.BuildConfigFromFlags("", r.config.KubeConfigPath)
		} else if cfg, r.err = rest.InClusterConfig(); r.err != nil {
			rules := clientcmd.NewDefaultClientConfigLoadingRules()
			cfg, r.err = clientcmd.NewNonInteractiveDeferredLoadingClientConfig(rules, &clientcmd.ConfigOverrides{}).ClientConfig()
		}
		if r.err != nil {
			r.err = errors.Wrap(r.err, "load kubernetes config")
			return
		}
		r.client, r.err = kubernetes.NewForConfig(cfg)
	})
	return r.client, r.err
}

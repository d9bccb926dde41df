// Package kubernetes acquires sandbox servers as agent-sandbox pods. Each
// sandbox session owns one SandboxClaim; the claim is deleted when the
// session is closed.
package kubernetes

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/runtime"
	"k8s.io/apimachinery/pkg/types"
	"sigs.k8s.io/controller-runtime/pkg/client"

	sandboxv1alpha1 "sigs.k8s.io/agent-sandbox/api/v1alpha1"
	extensionsv1alpha1 "sigs.k8s.io/agent-sandbox/extensions/api/v1alpha1"

	"github.com/rhuss/sandbox-mcp/pkg/debug"
	"github.com/rhuss/sandbox-mcp/pkg/sandbox"
)

var _ sandbox.Acquirer = (*ClaimAcquirer)(nil)

const (
	// DefaultPort is the port the sandbox server listens on inside the pod.
	DefaultPort = 8080

	defaultPollInterval = 500 * time.Millisecond
)

// Config configures a ClaimAcquirer.
type Config struct {
	// Template is the SandboxTemplate referenced by every claim.
	Template string

	// Namespace is where claims are created.
	Namespace string

	// Timeout bounds the wait for a claimed Sandbox to become ready.
	Timeout time.Duration

	// Port of the sandbox server. Defaults to DefaultPort.
	Port int
}

// ClaimAcquirer creates a SandboxClaim per Acquire, waits until the bound
// Sandbox reports Ready and a service FQDN, and returns the sandbox server
// URL on that service.
type ClaimAcquirer struct {
	client       client.Client
	cfg          Config
	pollInterval time.Duration
}

// NewClaimAcquirer creates a ClaimAcquirer.
func NewClaimAcquirer(c client.Client, cfg Config) *ClaimAcquirer {
	if cfg.Port == 0 {
		cfg.Port = DefaultPort
	}
	return &ClaimAcquirer{
		client:       c,
		cfg:          cfg,
		pollInterval: defaultPollInterval,
	}
}

// NewScheme returns a runtime.Scheme with the agent-sandbox types registered.
func NewScheme() (*runtime.Scheme, error) {
	scheme := runtime.NewScheme()
	if err := sandboxv1alpha1.AddToScheme(scheme); err != nil {
		return nil, fmt.Errorf("register sandbox types: %w", err)
	}
	if err := extensionsv1alpha1.AddToScheme(scheme); err != nil {
		return nil, fmt.Errorf("register extensions types: %w", err)
	}
	return scheme, nil
}

// Acquire claims a sandbox and returns its URL with a release function
// that deletes the claim. On failure the claim is deleted before returning.
func (a *ClaimAcquirer) Acquire(ctx context.Context) (string, func(), error) {
	name := generateClaimNameFn()

	claim := &extensionsv1alpha1.SandboxClaim{
		ObjectMeta: metav1.ObjectMeta{
			Name:      name,
			Namespace: a.cfg.Namespace,
			Labels: map[string]string{
				"app.kubernetes.io/managed-by": "sandbox-mcp",
			},
		},
		Spec: extensionsv1alpha1.SandboxClaimSpec{
			TemplateRef: extensionsv1alpha1.SandboxTemplateRef{
				Name: a.cfg.Template,
			},
		},
	}

	if err := a.client.Create(ctx, claim); err != nil {
		return "", nil, fmt.Errorf("create SandboxClaim %q: %w", name, err)
	}
	debug.Log("sandbox", "created SandboxClaim", "name", name, "namespace", a.cfg.Namespace, "template", a.cfg.Template)

	fqdn, err := a.waitForReady(ctx, name)
	if err != nil {
		a.deleteClaim(context.Background(), name)
		return "", nil, err
	}

	url := fmt.Sprintf("http://%s:%d", fqdn, a.cfg.Port)
	release := func() {
		a.deleteClaim(context.Background(), name)
	}

	debug.Log("sandbox", "sandbox claimed", "name", name, "url", url)
	return url, release, nil
}

// waitForReady polls the Sandbox named after the claim until it is Ready
// with a service FQDN, the timeout expires or ctx is done.
func (a *ClaimAcquirer) waitForReady(ctx context.Context, name string) (string, error) {
	deadline := time.NewTimer(a.cfg.Timeout)
	defer deadline.Stop()
	ticker := time.NewTicker(a.pollInterval)
	defer ticker.Stop()

	key := types.NamespacedName{Name: name, Namespace: a.cfg.Namespace}
	for {
		select {
		case <-ctx.Done():
			return "", fmt.Errorf("waiting for Sandbox %q: %w", name, ctx.Err())
		case <-deadline.C:
			return "", fmt.Errorf("timeout waiting for Sandbox %q to become ready (waited %s)", name, a.cfg.Timeout)
		case <-ticker.C:
			sb := &sandboxv1alpha1.Sandbox{}
			if err := a.client.Get(ctx, key, sb); err != nil {
				// Not created by the controller yet.
				debug.Trace("sandbox", "waiting for Sandbox", "name", name, "error", err.Error())
				continue
			}
			if isReady(sb) && sb.Status.ServiceFQDN != "" {
				return sb.Status.ServiceFQDN, nil
			}
		}
	}
}

func isReady(sb *sandboxv1alpha1.Sandbox) bool {
	for _, c := range sb.Status.Conditions {
		if c.Type == string(sandboxv1alpha1.SandboxConditionReady) && c.Status == metav1.ConditionTrue {
			return true
		}
	}
	return false
}

// deleteClaim deletes a SandboxClaim. Failures are logged only.
func (a *ClaimAcquirer) deleteClaim(ctx context.Context, name string) {
	claim := &extensionsv1alpha1.SandboxClaim{
		ObjectMeta: metav1.ObjectMeta{
			Name:      name,
			Namespace: a.cfg.Namespace,
		},
	}
	if err := client.IgnoreNotFound(a.client.Delete(ctx, claim)); err != nil {
		slog.Warn("failed to delete SandboxClaim", "name", name, "namespace", a.cfg.Namespace, "error", err.Error())
		return
	}
	debug.Log("sandbox", "deleted SandboxClaim", "name", name, "namespace", a.cfg.Namespace)
}

// generateClaimNameFn returns a unique claim name. Replaced in tests.
var generateClaimNameFn = func() string {
	return "sandbox-mcp-" + uuid.NewString()[:8]
}

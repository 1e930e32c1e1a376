// Package tunnel implements the tunnel supervisor (spec §4.6): discovering
// a pod by prefix, picking a free local port, and launching an external
// "port-forward" command to bridge the two.
//
// Pod discovery goes through k8s.io/client-go, the ecosystem-standard
// Kubernetes client used throughout the retrieval corpus. Subprocess
// supervision is grounded on the corpus's own kubectl-port-forward test
// helper (see DESIGN.md): os/exec plus net.Listen/net.DialTimeout polling,
// not a reimplementation of port-forwarding in-process.
package tunnel

import (
	"bytes"
	"context"
	"fmt"
	"math/rand"
	"net"
	"os/exec"
	"sort"
	"sync"
	"time"

	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"

	"go.uber.org/zap"

	"github.com/anandb/mockrelay/internal/apperrors"
	"github.com/anandb/mockrelay/internal/model"
)

const (
	portRangeLow   = 9000
	portRangeHigh  = 11000
	portPickTries  = 100
	precheckWait   = 10 * time.Second
	launchWait     = 30 * time.Second
	launchPoll     = 500 * time.Millisecond
	killWait       = 5 * time.Second
	portForwardBin = "port-forward"
)

// PodLister is the subset of client-go's CoreV1 interface the supervisor
// needs, declared here so tests can substitute a fake without standing up
// a real cluster.
type PodLister interface {
	ListPods(ctx context.Context, namespace string) ([]string, error)
}

// clientsetPodLister adapts a real *kubernetes.Clientset to PodLister.
type clientsetPodLister struct {
	clientset *kubernetes.Clientset
}

func NewPodLister(clientset *kubernetes.Clientset) PodLister {
	return &clientsetPodLister{clientset: clientset}
}

func (c *clientsetPodLister) ListPods(ctx context.Context, namespace string) ([]string, error) {
	list, err := c.clientset.CoreV1().Pods(namespace).List(ctx, metav1.ListOptions{})
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(list.Items))
	for _, p := range list.Items {
		names = append(names, p.Name)
	}
	sort.Strings(names)
	return names, nil
}

// commandRunner abstracts process launch/probe so tests can substitute a
// fake binary.
type commandRunner interface {
	probeVersion(ctx context.Context) error
	start(namespace, podName string, hostPort, podPort int) (*exec.Cmd, error)
}

type execCommandRunner struct {
	bin string
}

func (r execCommandRunner) probeVersion(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, precheckWait)
	defer cancel()
	cmd := exec.CommandContext(ctx, r.bin, "version")
	return cmd.Run()
}

func (r execCommandRunner) start(namespace, podName string, hostPort, podPort int) (*exec.Cmd, error) {
	cmd := exec.Command(r.bin,
		"-n", namespace,
		fmt.Sprintf("pod/%s", podName),
		fmt.Sprintf("%d:%d", hostPort, podPort),
	)
	var combined bytes.Buffer
	cmd.Stdout = &combined
	cmd.Stderr = &combined
	if err := cmd.Start(); err != nil {
		return nil, err
	}
	return cmd, nil
}

// Handle is a supervised port-forward subprocess.
type Handle struct {
	cmd      *exec.Cmd
	HostPort int
}

// Supervisor owns tunnel lifecycle for relay rules carrying a TunnelTarget.
type Supervisor struct {
	log     *zap.Logger
	pods    PodLister
	runner  commandRunner
	randSrc *rand.Rand
	mu      sync.Mutex
}

func NewSupervisor(log *zap.Logger, pods PodLister) *Supervisor {
	return &Supervisor{
		log:     log,
		pods:    pods,
		runner:  execCommandRunner{bin: portForwardBin},
		randSrc: rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Start runs the full tunnel-startup algorithm of spec §4.6 for one
// relay rule's tunnel target, returning a Handle whose HostPort is the
// locally bound port once the tunnel is confirmed up.
func (s *Supervisor) Start(ctx context.Context, target *model.TunnelTarget) (*Handle, error) {
	if err := s.runner.probeVersion(ctx); err != nil {
		return nil, apperrors.TunnelStartupError("port-forward command precondition check failed: %v", err)
	}

	podName, err := s.discoverPod(ctx, target.Namespace, target.PodPrefix)
	if err != nil {
		return nil, err
	}

	hostPort, err := s.pickFreePort()
	if err != nil {
		return nil, err
	}

	cmd, err := s.runner.start(target.Namespace, podName, hostPort, target.PodPort)
	if err != nil {
		return nil, apperrors.TunnelStartupError("failed to launch port-forward: %v", err)
	}

	if err := s.waitForBoundPort(cmd, hostPort); err != nil {
		killProcess(cmd)
		return nil, err
	}

	return &Handle{cmd: cmd, HostPort: hostPort}, nil
}

func (s *Supervisor) discoverPod(ctx context.Context, namespace, prefix string) (string, error) {
	names, err := s.pods.ListPods(ctx, namespace)
	if err != nil {
		return "", apperrors.TunnelStartupError("listing pods in namespace %q: %v", namespace, err)
	}
	for _, name := range names {
		if len(name) >= len(prefix) && name[:len(prefix)] == prefix {
			return name, nil
		}
	}
	return "", apperrors.TunnelStartupError("no pod in namespace %q with prefix %q", namespace, prefix)
}

func (s *Supervisor) pickFreePort() (int, error) {
	s.mu.Lock()
	r := s.randSrc
	s.mu.Unlock()

	for i := 0; i < portPickTries; i++ {
		candidate := portRangeLow + r.Intn(portRangeHigh-portRangeLow+1)
		if probeBind(candidate) {
			return candidate, nil
		}
	}
	return 0, apperrors.TunnelStartupError("could not find a free port in [%d, %d] after %d tries", portRangeLow, portRangeHigh, portPickTries)
}

func probeBind(port int) bool {
	ln, err := net.Listen("tcp", fmt.Sprintf("127.0.0.1:%d", port))
	if err != nil {
		return false
	}
	ln.Close()
	return true
}

func (s *Supervisor) waitForBoundPort(cmd *exec.Cmd, hostPort int) error {
	deadline := time.Now().Add(launchWait)
	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()

	for time.Now().Before(deadline) {
		select {
		case err := <-done:
			if err == nil {
				err = fmt.Errorf("port-forward process exited early")
			}
			return apperrors.TunnelStartupError("port-forward process died before binding: %v", err)
		default:
		}

		conn, err := net.DialTimeout("tcp", fmt.Sprintf("127.0.0.1:%d", hostPort), 200*time.Millisecond)
		if err == nil {
			conn.Close()
			return nil
		}
		time.Sleep(launchPoll)
	}
	return apperrors.TunnelStartupError("port-forward to host port %d did not become reachable within %s", hostPort, launchWait)
}

// Stop force-kills the subprocess and waits up to killWait for it to exit.
func (h *Handle) Stop() {
	if h == nil || h.cmd == nil {
		return
	}
	killProcess(h.cmd)
}

func killProcess(cmd *exec.Cmd) {
	if cmd.Process == nil {
		return
	}
	cmd.Process.Kill()
	done := make(chan struct{})
	go func() {
		cmd.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(killWait):
	}
}

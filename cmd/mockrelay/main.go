// Command mockrelay boots the multi-tenant HTTP mock/relay server host.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/tools/clientcmd"

	"github.com/anandb/mockrelay/internal/certstore"
	"github.com/anandb/mockrelay/internal/config"
	"github.com/anandb/mockrelay/internal/listener"
	"github.com/anandb/mockrelay/internal/logging"
	"github.com/anandb/mockrelay/internal/oauth2cache"
	"github.com/anandb/mockrelay/internal/procconfig"
	"github.com/anandb/mockrelay/internal/tunnel"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var debug bool
	root := &cobra.Command{
		Use:   "mockrelay",
		Short: "Multi-tenant HTTP mock/relay server host",
	}
	root.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")
	root.AddCommand(newServeCmd(&debug))
	return root
}

func newServeCmd(debug *bool) *cobra.Command {
	var configFile, scratchDir, kubeconfig string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Load the configured listeners and serve until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(*debug, configFile, scratchDir, kubeconfig)
		},
	}
	cmd.Flags().StringVar(&configFile, "config-file", "", "path to the listener configuration document (overrides MOCKRELAY_CONFIG_FILE)")
	cmd.Flags().StringVar(&scratchDir, "scratch-dir", "", "directory for materialized TLS files (overrides MOCKRELAY_SCRATCH_DIR)")
	cmd.Flags().StringVar(&kubeconfig, "kubeconfig", "", "path to a kubeconfig for tunnel pod discovery; empty tries in-cluster config")
	return cmd
}

func runServe(debug bool, configFileFlag, scratchDirFlag, kubeconfig string) error {
	log, err := logging.New(debug)
	if err != nil {
		return fmt.Errorf("initializing logger: %w", err)
	}
	defer log.Sync()

	settings, err := procconfig.Load()
	if err != nil {
		return fmt.Errorf("loading process settings: %w", err)
	}
	if configFileFlag != "" {
		settings.ConfigFile = configFileFlag
	}
	if scratchDirFlag != "" {
		settings.ScratchDir = scratchDirFlag
	}

	podLister, err := buildPodLister(kubeconfig)
	if err != nil {
		log.Warn("tunnel pod discovery unavailable; relay rules with a tunnel block will fail to start", zap.Error(err))
		podLister = unavailablePodLister{cause: err}
	}

	store := certstore.NewStore(afero.NewOsFs(), settings.ScratchDir, log)
	sup := tunnel.NewSupervisor(log, podLister)
	tokenCache := oauth2cache.NewCache(log)
	mgr := listener.NewManager(log, store, sup, tokenCache)

	loader := config.NewLoader(log, nil)
	configPath, err := settings.ResolveConfigPath()
	if err != nil {
		return fmt.Errorf("resolving config path: %w", err)
	}
	if configPath != "" {
		if err := loader.LoadFile(configPath, mgr); err != nil {
			return fmt.Errorf("loading config %q: %w", configPath, err)
		}
		log.Info("loaded listener configuration", zap.String("path", configPath))
	} else {
		log.Info("no listener configuration found; starting with zero listeners")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()

	log.Info("shutting down")
	mgr.Shutdown()
	store.Shutdown(settings.CleanupOnShutdown)
	return nil
}

// buildPodLister constructs a tunnel.PodLister from a kubeconfig path, or
// the in-cluster config when kubeconfigPath is empty and the process is
// running inside a pod. Tunnel startup fails per relay rule if no cluster
// is reachable, not at process boot, so an error here is non-fatal.
func buildPodLister(kubeconfigPath string) (tunnel.PodLister, error) {
	restCfg, err := clientcmd.BuildConfigFromFlags("", kubeconfigPath)
	if err != nil {
		return nil, fmt.Errorf("building kubeconfig: %w", err)
	}
	clientset, err := kubernetes.NewForConfig(restCfg)
	if err != nil {
		return nil, fmt.Errorf("building kubernetes clientset: %w", err)
	}
	return tunnel.NewPodLister(clientset), nil
}

// unavailablePodLister stands in when no Kubernetes cluster is reachable
// at startup, so a tunneled relay rule fails cleanly through
// TunnelStartupError instead of panicking on a nil PodLister.
type unavailablePodLister struct{ cause error }

func (u unavailablePodLister) ListPods(ctx context.Context, namespace string) ([]string, error) {
	return nil, fmt.Errorf("no kubernetes cluster reachable: %w", u.cause)
}

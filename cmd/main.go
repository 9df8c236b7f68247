/*
Copyright 2026.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Command manager runs the nixops-operator controller manager: it watches
// Machine and NixosConfiguration objects and drives externally-hosted Unix
// hosts towards the NixOS configuration each one names.
package main

import (
	"crypto/tls"
	"flag"
	"fmt"
	"os"

	"go.uber.org/zap/zapcore"
	clientgoscheme "k8s.io/client-go/kubernetes/scheme"
	ctrl "sigs.k8s.io/controller-runtime"
	"sigs.k8s.io/controller-runtime/pkg/healthz"
	metricsserver "sigs.k8s.io/controller-runtime/pkg/metrics/server"
	"sigs.k8s.io/controller-runtime/pkg/webhook"
	crzap "sigs.k8s.io/controller-runtime/pkg/log/zap"

	appsv1alpha1 "github.com/nixops-sh/nixops-operator/api/v1alpha1"
	"github.com/nixops-sh/nixops-operator/internal/applier"
	"github.com/nixops-sh/nixops-operator/internal/backoff"
	"github.com/nixops-sh/nixops-operator/internal/config"
	"github.com/nixops-sh/nixops-operator/internal/controller"
	"github.com/nixops-sh/nixops-operator/internal/gitworkspace"
	"github.com/nixops-sh/nixops-operator/internal/sshtransport"
	"github.com/nixops-sh/nixops-operator/internal/vault"
)

var scheme = clientgoscheme.Scheme

func init() {
	if err := appsv1alpha1.AddToScheme(scheme); err != nil {
		panic(fmt.Sprintf("registering apps.nixops.sh/v1alpha1: %v", err))
	}
}

func main() {
	var enableLeaderElection bool
	var probeAddr string
	flag.BoolVar(&enableLeaderElection, "leader-elect", false,
		"Enable leader election for controller manager. NIXOPS_LEADER_ELECT=true also enables it.")
	flag.StringVar(&probeAddr, "health-probe-bind-address", "", "The address the probe endpoint binds to.")
	flag.Parse()

	logLevel := zapcore.InfoLevel
	cfg, err := config.Load()
	if err == nil {
		_ = logLevel.Set(cfg.LogLevel)
	}
	ctrl.SetLogger(crzap.New(crzap.UseDevMode(false), crzap.Level(logLevel)))
	setupLog := ctrl.Log.WithName("setup")

	if err != nil {
		setupLog.Error(err, "loading configuration")
		os.Exit(1)
	}
	if probeAddr == "" {
		probeAddr = fmt.Sprintf(":%d", cfg.HealthPort)
	}
	leaderElect := cfg.LeaderElect || enableLeaderElection

	mgr, err := ctrl.NewManager(ctrl.GetConfigOrDie(), ctrl.Options{
		Scheme: scheme,
		Metrics: metricsserver.Options{
			BindAddress:   fmt.Sprintf(":%d", cfg.MetricsPort),
			SecureServing: false,
			TLSOpts:       []func(*tls.Config){},
		},
		WebhookServer:          webhook.NewServer(webhook.Options{Port: 9443}),
		HealthProbeBindAddress: probeAddr,
		LeaderElection:         leaderElect,
		LeaderElectionID:       "nixops-operator.apps.nixops.sh",
	})
	if err != nil {
		setupLog.Error(err, "unable to start manager")
		os.Exit(1)
	}

	knownHosts, err := sshtransport.NewKnownHosts(cfg.KnownHostsPath)
	if err != nil {
		setupLog.Error(err, "initializing known_hosts store")
		os.Exit(1)
	}
	transport := sshtransport.New(knownHosts)
	credentials := vault.New(mgr.GetClient())
	git := gitworkspace.New(cfg.WorkspaceBasePath)
	apply := applier.New()
	retry := backoff.New(cfg)
	metrics := controller.NewMetrics()

	if err = (&controller.MachineReconciler{
		Client:    mgr.GetClient(),
		Scheme:    mgr.GetScheme(),
		Recorder:  mgr.GetEventRecorderFor("machine-controller"),
		Vault:     credentials,
		Transport: transport,
		Config:    cfg,
	}).SetupWithManager(mgr); err != nil {
		setupLog.Error(err, "unable to create controller", "controller", "Machine")
		os.Exit(1)
	}

	if err = (&controller.NixosConfigurationReconciler{
		Client:    mgr.GetClient(),
		Scheme:    mgr.GetScheme(),
		Recorder:  mgr.GetEventRecorderFor("nixosconfiguration-controller"),
		Vault:     credentials,
		Transport: transport,
		Git:       git,
		Applier:   apply,
		Backoff:   retry,
		Metrics:   metrics,
		Config:    cfg,
	}).SetupWithManager(mgr); err != nil {
		setupLog.Error(err, "unable to create controller", "controller", "NixosConfiguration")
		os.Exit(1)
	}

	if err := mgr.AddHealthzCheck("healthz", healthz.Ping); err != nil {
		setupLog.Error(err, "unable to set up health check")
		os.Exit(1)
	}
	if err := mgr.AddReadyzCheck("readyz", healthz.Ping); err != nil {
		setupLog.Error(err, "unable to set up ready check")
		os.Exit(1)
	}

	setupLog.Info("starting manager", "leaderElection", leaderElect)
	if err := mgr.Start(ctrl.SetupSignalHandler()); err != nil {
		setupLog.Error(err, "problem running manager")
		os.Exit(1)
	}
}

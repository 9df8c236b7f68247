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

package controller

import (
	"context"
	"fmt"
	"sort"
	"time"

	corev1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/runtime"
	"k8s.io/apimachinery/pkg/types"
	"k8s.io/client-go/tools/record"
	"k8s.io/client-go/util/retry"
	ctrl "sigs.k8s.io/controller-runtime"
	"sigs.k8s.io/controller-runtime/pkg/client"
	"sigs.k8s.io/controller-runtime/pkg/controller"
	"sigs.k8s.io/controller-runtime/pkg/controller/controllerutil"
	"sigs.k8s.io/controller-runtime/pkg/log"

	appsv1alpha1 "github.com/nixops-sh/nixops-operator/api/v1alpha1"
	"github.com/nixops-sh/nixops-operator/internal/applier"
	"github.com/nixops-sh/nixops-operator/internal/backoff"
	"github.com/nixops-sh/nixops-operator/internal/config"
	nixopserrors "github.com/nixops-sh/nixops-operator/internal/errors"
	"github.com/nixops-sh/nixops-operator/internal/fingerprint"
	"github.com/nixops-sh/nixops-operator/internal/gitworkspace"
	"github.com/nixops-sh/nixops-operator/internal/injector"
	"github.com/nixops-sh/nixops-operator/internal/sshtransport"
	"github.com/nixops-sh/nixops-operator/internal/vault"
)

// gitClient is the subset of gitworkspace.Client the reconciler depends
// on; fakegit.Client satisfies it structurally for tests.
type gitClient interface {
	LsRemote(ctx context.Context, repo, ref string, auth gitworkspace.Auth) (gitworkspace.Result, error)
	Acquire(ctx context.Context, repo, commit, ref string, auth gitworkspace.Auth) (*gitworkspace.Workspace, func(), error)
}

// applierClient is the subset of applier.Applier the reconciler depends
// on, to allow controller tests to substitute a scripted double.
type applierClient interface {
	Apply(ctx context.Context, in applier.Input) (applier.Result, error)
}

// NixosConfigurationReconciler drives the build-then-apply state machine,
// recording the Building -> Applying -> Applied phases in status, with a
// side branch to Failed. The Pending, Resolving and Deleting phases exist in
// the API but this reconciler never writes them; deletion is handled
// without a phase change.
type NixosConfigurationReconciler struct {
	client.Client
	Scheme    *runtime.Scheme
	Recorder  record.EventRecorder
	Vault     *vault.Vault
	Transport sshtransport.Transport
	Git       gitClient
	Applier   applierClient
	Backoff   *backoff.Tiers
	Metrics   *Metrics
	Config    config.Config

	records *recordStore
}

// +kubebuilder:rbac:groups=apps.nixops.sh,resources=nixosconfigurations,verbs=get;list;watch;create;update;patch;delete
// +kubebuilder:rbac:groups=apps.nixops.sh,resources=nixosconfigurations/status,verbs=get;update;patch
// +kubebuilder:rbac:groups=apps.nixops.sh,resources=nixosconfigurations/finalizers,verbs=update
// +kubebuilder:rbac:groups=apps.nixops.sh,resources=machines,verbs=get;list;watch;update;patch
// +kubebuilder:rbac:groups=apps.nixops.sh,resources=machines/status,verbs=get;update;patch
// +kubebuilder:rbac:groups="",resources=secrets,verbs=get;list;watch
// +kubebuilder:rbac:groups="",resources=events,verbs=create;patch

func (r *NixosConfigurationReconciler) Reconcile(ctx context.Context, req ctrl.Request) (ctrl.Result, error) {
	start := time.Now()
	if r.records == nil {
		r.records = newRecordStore()
	}

	var cfg appsv1alpha1.NixosConfiguration
	if err := r.Get(ctx, req.NamespacedName, &cfg); err != nil {
		if apierrors.IsNotFound(err) {
			r.records.delete(req.String())
			return ctrl.Result{}, nil
		}
		return ctrl.Result{}, err
	}
	base := cfg.DeepCopy()
	rec := r.records.get(req.String())

	// Step 1: deletion / finalizer handling.
	if !cfg.DeletionTimestamp.IsZero() {
		result, err := r.reconcileDeleting(ctx, &cfg, base, rec)
		r.observe(start, "deleting")
		return result, err
	}
	if !controllerutil.ContainsFinalizer(&cfg, finalizerName) {
		controllerutil.AddFinalizer(&cfg, finalizerName)
		if err := r.Update(ctx, &cfg); err != nil {
			return ctrl.Result{}, err
		}
		return ctrl.Result{Requeue: true}, nil
	}

	if cfg.Spec.Paused {
		setCondition(&cfg.Status.Conditions, CondReady, metav1.ConditionFalse, "Paused", "Reconciliation is paused", cfg.Generation)
		if err := r.patchConfigStatus(ctx, &cfg, base); err != nil {
			return ctrl.Result{}, err
		}
		r.observe(start, "paused")
		return ctrl.Result{RequeueAfter: r.pollingInterval(&cfg)}, nil
	}

	result, applyErr := r.reconcileDesired(ctx, &cfg, base, rec)
	r.observe(start, resultLabel(applyErr))
	return result, nil
}

func resultLabel(err error) string {
	if err == nil {
		return "success"
	}
	if re, ok := nixopserrors.As(err); ok && re.Retryable() {
		return "retry"
	}
	return "terminal"
}

func (r *NixosConfigurationReconciler) observe(start time.Time, result string) {
	if r.Metrics == nil {
		return
	}
	r.Metrics.ReconcilesTotal.WithLabelValues(result).Inc()
	r.Metrics.ReconcileDuration.WithLabelValues(result).Observe(time.Since(start).Seconds())
}

// reconcileDesired implements steps 2 through 7 of the non-deletion
// transition table.
func (r *NixosConfigurationReconciler) reconcileDesired(ctx context.Context, cfg *appsv1alpha1.NixosConfiguration, base *appsv1alpha1.NixosConfiguration, rec *reconcileRecord) (ctrl.Result, error) {
	logger := log.FromContext(ctx)

	// Step 2: resolve Machine + reachability.
	var machine appsv1alpha1.Machine
	if err := r.Get(ctx, types.NamespacedName{Namespace: cfg.Namespace, Name: cfg.Spec.MachineRef.Name}, &machine); err != nil {
		if apierrors.IsNotFound(err) {
			return r.terminal(ctx, cfg, base, nixopserrors.New(nixopserrors.KindMissingMachine,
				fmt.Sprintf("machine %q not found", cfg.Spec.MachineRef.Name)))
		}
		return ctrl.Result{}, err
	}
	machineBase := machine.DeepCopy()

	sshKey, err := r.Vault.LoadSSHKey(ctx, machine.Namespace, machine.Spec.SSHKeySecretRef.Name)
	if err != nil {
		return r.terminal(ctx, cfg, base, err)
	}
	target := sshtransport.Target{Hostname: machine.Spec.Hostname, User: machine.Spec.SSHUser, Port: machine.Spec.SSHPort, Key: sshKey}

	if probeErr := r.Transport.Probe(ctx, target); probeErr != nil {
		return r.retryable(ctx, cfg, base, probeErr, rec)
	}

	// Step 3: ownership check.
	if machine.Status.AppliedConfiguration != "" && machine.Status.AppliedConfiguration != cfg.Name {
		return r.terminal(ctx, cfg, base, nixopserrors.New(nixopserrors.KindConflict,
			fmt.Sprintf("machine %q is already owned by NixosConfiguration %q", machine.Name, machine.Status.AppliedConfiguration)))
	}

	// Step 4: resolve ref, build file set, compute fingerprint.
	gitAuth, err := r.resolveGitAuth(ctx, cfg)
	if err != nil {
		return r.terminal(ctx, cfg, base, err)
	}

	resolved, err := r.Git.LsRemote(ctx, cfg.Spec.GitRepo, effectiveRef(cfg.Spec.GitRef), gitAuth)
	if err != nil {
		return r.retryable(ctx, cfg, base, err, rec)
	}
	cfg.Status.ResolvedCommit = resolved.Commit

	files, err := r.resolveAdditionalFiles(ctx, cfg, &machine)
	if err != nil {
		return r.terminal(ctx, cfg, base, err)
	}
	sorted := injector.SortedForFingerprint(files)

	fp := fingerprint.Compute(fingerprint.Input{
		Commit:              resolved.Commit,
		Flake:               cfg.Spec.Flake,
		ConfigurationSubdir: cfg.Spec.ConfigurationSubdir,
		FullInstall:         cfg.Spec.FullInstall,
		Files:               toFingerprintFiles(sorted),
	})
	rec.lastFingerprint = fp

	// Step 5: idempotence decision.
	if machine.Status.AppliedFingerprint == fp && machine.Status.AppliedConfiguration == cfg.Name {
		cfg.Status.Phase = appsv1alpha1.PhaseApplied
		cfg.Status.ObservedGeneration = cfg.Generation
		cfg.Status.AppliedCommit = machine.Status.AppliedCommit
		cfg.Status.AppliedFingerprint = fp
		cfg.Status.LastError = ""
		setCondition(&cfg.Status.Conditions, CondReady, metav1.ConditionTrue, "Applied", "Desired state already applied", cfg.Generation)
		if err := r.patchConfigStatus(ctx, cfg, base); err != nil {
			return ctrl.Result{}, err
		}
		rec.retryCount = 0
		return ctrl.Result{RequeueAfter: r.pollingInterval(cfg)}, nil
	}

	// Step 6: build workspace and apply.
	cfg.Status.Phase = appsv1alpha1.PhaseBuilding
	_ = r.patchConfigStatus(ctx, cfg, base)
	base = cfg.DeepCopy()

	ws, release, err := r.Git.Acquire(ctx, cfg.Spec.GitRepo, resolved.Commit, effectiveRef(cfg.Spec.GitRef), gitAuth)
	if err != nil {
		return r.retryable(ctx, cfg, base, err, rec)
	}
	defer release()

	if err := injector.Inject(ws.Dir, sorted); err != nil {
		return r.terminal(ctx, cfg, base, err)
	}

	cfg.Status.Phase = appsv1alpha1.PhaseApplying
	r.Recorder.Eventf(cfg, corev1.EventTypeNormal, "ApplyStarted", "Applying configuration %s to machine %s", cfg.Name, machine.Name)
	_ = r.patchConfigStatus(ctx, cfg, base)
	base = cfg.DeepCopy()

	mode := applier.ModeSwitch
	if cfg.Spec.FullInstall {
		mode = applier.ModeBootstrap
	}

	applyResult, applyErr := r.Applier.Apply(ctx, applier.Input{
		Mode:                mode,
		WorkspaceDir:        ws.Dir,
		ConfigurationSubdir: cfg.Spec.ConfigurationSubdir,
		Flake:               cfg.Spec.Flake,
		Target:              applier.Target{Hostname: machine.Spec.Hostname, User: machine.Spec.SSHUser, Port: machine.Spec.SSHPort},
		SSHKey:              sshKey,
		ScratchDir:          r.Config.WorkspaceBasePath,
		KnownHostsPath:      r.Config.KnownHostsPath,
		Timeout:             r.Config.ApplyTimeout,
	})

	if r.Metrics != nil {
		result := "success"
		if applyErr != nil {
			result = "failure"
		}
		r.Metrics.ApplyTotal.WithLabelValues(string(mode), result).Inc()
	}

	if applyErr != nil {
		logger.Error(applyErr, "apply failed", "tail", applyResult.Tail)
		return r.retryable(ctx, cfg, base, applyErr, rec)
	}

	now := metav1.Now()
	machine.Status.AppliedConfiguration = cfg.Name
	machine.Status.AppliedCommit = resolved.Commit
	machine.Status.AppliedFingerprint = fp
	machine.Status.LastAppliedAt = &now
	machine.Status.HasConfiguration = true
	if err := r.Status().Patch(ctx, &machine, client.MergeFrom(machineBase)); err != nil {
		return r.retryable(ctx, cfg, base, nixopserrors.Wrap(nixopserrors.KindStatusConflict, "patching Machine status", err), rec)
	}

	cfg.Status.Phase = appsv1alpha1.PhaseApplied
	cfg.Status.ObservedGeneration = cfg.Generation
	cfg.Status.AppliedCommit = resolved.Commit
	cfg.Status.AppliedFingerprint = fp
	cfg.Status.LastError = ""
	setCondition(&cfg.Status.Conditions, CondReady, metav1.ConditionTrue, "Applied", "Apply succeeded", cfg.Generation)
	if err := r.patchConfigStatus(ctx, cfg, base); err != nil {
		return ctrl.Result{}, err
	}
	r.Recorder.Eventf(cfg, corev1.EventTypeNormal, "ApplySucceeded", "Applied commit %s to machine %s", resolved.Commit, machine.Name)
	rec.retryCount = 0

	return ctrl.Result{RequeueAfter: r.pollingInterval(cfg)}, nil
}

// reconcileDeleting implements the deletion / tear-down branch.
func (r *NixosConfigurationReconciler) reconcileDeleting(ctx context.Context, cfg *appsv1alpha1.NixosConfiguration, base *appsv1alpha1.NixosConfiguration, rec *reconcileRecord) (ctrl.Result, error) {
	if !controllerutil.ContainsFinalizer(cfg, finalizerName) {
		return ctrl.Result{}, nil
	}

	var machine appsv1alpha1.Machine
	machineErr := r.Get(ctx, types.NamespacedName{Namespace: cfg.Namespace, Name: cfg.Spec.MachineRef.Name}, &machine)
	owned := machineErr == nil && machine.Status.AppliedConfiguration == cfg.Name

	needsTeardown := cfg.Spec.OnRemoveFlake.Flake != "" && owned && !rec.teardownAttempted

	if needsTeardown {
		sshKey, err := r.Vault.LoadSSHKey(ctx, machine.Namespace, machine.Spec.SSHKeySecretRef.Name)
		if err != nil {
			setCondition(&cfg.Status.Conditions, CondReady, metav1.ConditionFalse, "TeardownFailed", err.Error(), cfg.Generation)
			_ = r.patchConfigStatus(ctx, cfg, base)
			return ctrl.Result{RequeueAfter: r.Backoff.Delay(nixopserrors.BackoffShort, rec.bumpRetry())}, nil
		}

		target := sshtransport.Target{Hostname: machine.Spec.Hostname, User: machine.Spec.SSHUser, Port: machine.Spec.SSHPort, Key: sshKey}
		probeErr := r.Transport.Probe(ctx, target)

		switch {
		case probeErr != nil && isUnreachable(probeErr) && cfg.Spec.OnRemoveFlake.SkipOnUnreachable:
			rec.teardownAttempted = true
		case probeErr != nil && isUnreachable(probeErr):
			return ctrl.Result{RequeueAfter: r.Backoff.Delay(nixopserrors.BackoffLong, rec.bumpRetry())}, nil
		case probeErr == nil:
			gitAuth, authErr := r.resolveGitAuth(ctx, cfg)
			if authErr != nil {
				setCondition(&cfg.Status.Conditions, CondReady, metav1.ConditionFalse, "TeardownFailed", authErr.Error(), cfg.Generation)
				_ = r.patchConfigStatus(ctx, cfg, base)
				return ctrl.Result{}, nil
			}
			resolved, lsErr := r.Git.LsRemote(ctx, cfg.Spec.GitRepo, effectiveRef(cfg.Spec.GitRef), gitAuth)
			if lsErr != nil {
				return ctrl.Result{RequeueAfter: r.Backoff.Delay(nixopserrors.BackoffShort, rec.bumpRetry())}, nil
			}
			ws, release, acqErr := r.Git.Acquire(ctx, cfg.Spec.GitRepo, resolved.Commit, effectiveRef(cfg.Spec.GitRef), gitAuth)
			if acqErr != nil {
				return ctrl.Result{RequeueAfter: r.Backoff.Delay(nixopserrors.BackoffShort, rec.bumpRetry())}, nil
			}
			_, applyErr := r.Applier.Apply(ctx, applier.Input{
				Mode:                applier.ModeSwitch,
				WorkspaceDir:        ws.Dir,
				ConfigurationSubdir: cfg.Spec.ConfigurationSubdir,
				Flake:               cfg.Spec.OnRemoveFlake.Flake,
				Target:         applier.Target{Hostname: machine.Spec.Hostname, User: machine.Spec.SSHUser, Port: machine.Spec.SSHPort},
				SSHKey:         sshKey,
				ScratchDir:     r.Config.WorkspaceBasePath,
				KnownHostsPath: r.Config.KnownHostsPath,
				Timeout:        r.Config.ApplyTimeout,
			})
			release()
			if applyErr != nil {
				re, retryable := nixopserrors.As(applyErr)
				if retryable && re.Retryable() {
					return ctrl.Result{RequeueAfter: r.Backoff.Delay(re.BackoffClass(), rec.bumpRetry())}, nil
				}
				setCondition(&cfg.Status.Conditions, CondReady, metav1.ConditionFalse, "TeardownFailed", applyErr.Error(), cfg.Generation)
				_ = r.patchConfigStatus(ctx, cfg, base)
				return ctrl.Result{}, nil
			}
			rec.teardownAttempted = true
		}
	}

	if owned && (rec.teardownAttempted || cfg.Spec.OnRemoveFlake.Flake == "") {
		machineBase := machine.DeepCopy()
		machine.Status.AppliedConfiguration = ""
		machine.Status.HasConfiguration = false
		if err := r.Status().Patch(ctx, &machine, client.MergeFrom(machineBase)); err != nil {
			return ctrl.Result{}, err
		}
	}

	controllerutil.RemoveFinalizer(cfg, finalizerName)
	if err := r.Update(ctx, cfg); err != nil {
		return ctrl.Result{}, err
	}
	r.records.delete(client.ObjectKeyFromObject(cfg).String())
	return ctrl.Result{}, nil
}

func isUnreachable(err error) bool {
	re, ok := nixopserrors.As(err)
	return ok && re.Kind == nixopserrors.KindUnreachable
}

func (r *NixosConfigurationReconciler) terminal(ctx context.Context, cfg *appsv1alpha1.NixosConfiguration, base *appsv1alpha1.NixosConfiguration, err error) (ctrl.Result, error) {
	re, ok := nixopserrors.As(err)
	reason := "Failed"
	if ok {
		reason = string(re.Kind)
	}
	cfg.Status.Phase = appsv1alpha1.PhaseFailed
	cfg.Status.LastError = err.Error()
	setCondition(&cfg.Status.Conditions, CondReady, metav1.ConditionFalse, reason, err.Error(), cfg.Generation)
	eventMsg := err.Error()
	if n := r.Config.EventTailBytes; n > 0 && len(eventMsg) > n {
		eventMsg = eventMsg[len(eventMsg)-n:]
	}
	r.Recorder.Event(cfg, corev1.EventTypeWarning, reason, eventMsg)
	if patchErr := r.patchConfigStatus(ctx, cfg, base); patchErr != nil {
		return ctrl.Result{}, patchErr
	}
	return ctrl.Result{}, nil
}

func (r *NixosConfigurationReconciler) retryable(ctx context.Context, cfg *appsv1alpha1.NixosConfiguration, base *appsv1alpha1.NixosConfiguration, err error, rec *reconcileRecord) (ctrl.Result, error) {
	re, ok := nixopserrors.As(err)
	if !ok || !re.Retryable() {
		return r.terminal(ctx, cfg, base, err)
	}
	if rec.retryCount >= r.Config.RetryMaxAttempts {
		return r.terminal(ctx, cfg, base, err)
	}

	cfg.Status.Phase = appsv1alpha1.PhaseFailed
	cfg.Status.LastError = err.Error()
	setCondition(&cfg.Status.Conditions, CondReady, metav1.ConditionFalse, string(re.Kind), err.Error(), cfg.Generation)
	if patchErr := r.patchConfigStatus(ctx, cfg, base); patchErr != nil {
		return ctrl.Result{}, patchErr
	}

	delay := r.Backoff.Delay(re.BackoffClass(), rec.bumpRetry())
	return ctrl.Result{RequeueAfter: delay}, nil
}

// patchConfigStatus retries the status patch internally on conflict,
// bounded by retry.DefaultRetry (5 steps), before surfacing a terminal
// KindStatusConflict; this is distinct from rec.retryCount, which governs
// genuine operational failures rather than ordinary concurrent-writer
// churn on the same object.
func (r *NixosConfigurationReconciler) patchConfigStatus(ctx context.Context, cfg *appsv1alpha1.NixosConfiguration, base *appsv1alpha1.NixosConfiguration) error {
	err := retry.RetryOnConflict(retry.DefaultRetry, func() error {
		return r.Status().Patch(ctx, cfg, client.MergeFrom(base))
	})
	if err != nil {
		if apierrors.IsConflict(err) {
			return nixopserrors.Wrap(nixopserrors.KindStatusConflict, "patching NixosConfiguration status", err)
		}
		return err
	}
	return nil
}

func (r *NixosConfigurationReconciler) pollingInterval(cfg *appsv1alpha1.NixosConfiguration) time.Duration {
	if cfg.Spec.PollingInterval != "" {
		if d, err := time.ParseDuration(cfg.Spec.PollingInterval); err == nil {
			return d
		}
	}
	if r.Config.ReconcileInterval > 0 {
		return r.Config.ReconcileInterval
	}
	return 60 * time.Second
}

func effectiveRef(ref string) string {
	if ref == "" {
		return "HEAD"
	}
	return ref
}

func (r *NixosConfigurationReconciler) resolveGitAuth(ctx context.Context, cfg *appsv1alpha1.NixosConfiguration) (gitworkspace.Auth, error) {
	switch {
	case cfg.Spec.GitAuth.SSHKeySecretRef != nil:
		handle, err := r.Vault.LoadGitAuth(ctx, cfg.Namespace, cfg.Spec.GitAuth.SSHKeySecretRef.Name)
		if err != nil {
			return gitworkspace.Auth{}, err
		}
		return gitworkspace.ResolveAuth(handle), nil
	case cfg.Spec.GitAuth.TokenSecretRef != nil:
		handle, err := r.Vault.LoadGitAuth(ctx, cfg.Namespace, cfg.Spec.GitAuth.TokenSecretRef.Name)
		if err != nil {
			return gitworkspace.Auth{}, err
		}
		return gitworkspace.ResolveAuth(handle), nil
	default:
		return gitworkspace.Auth{}, nil
	}
}

// resolveAdditionalFiles resolves every additionalFiles entry to its
// effective content, without requiring a git checkout to exist yet.
func (r *NixosConfigurationReconciler) resolveAdditionalFiles(ctx context.Context, cfg *appsv1alpha1.NixosConfiguration, machine *appsv1alpha1.Machine) ([]injector.File, error) {
	files := make([]injector.File, 0, len(cfg.Spec.AdditionalFiles))
	for _, af := range cfg.Spec.AdditionalFiles {
		mode, err := injector.ParseMode(af.Mode)
		if err != nil {
			return nil, err
		}

		switch {
		case af.Source.Inline != "":
			files = append(files, injector.File{Path: af.Path, Content: []byte(af.Source.Inline), Mode: mode})
		case af.Source.SecretRef != nil:
			handle, err := r.Vault.LoadSecretKey(ctx, cfg.Namespace, af.Source.SecretRef.Name, af.Source.SecretRef.Key)
			if err != nil {
				return nil, err
			}
			if mode == 0644 {
				mode = 0600
			}
			files = append(files, injector.File{Path: af.Path, Content: handle.Bytes(), Mode: mode})
		case af.Source.HardwareFacts:
			files = append(files, injector.File{Path: af.Path, Content: renderFacts(machine.Status.Facts), Mode: mode})
		default:
			return nil, nixopserrors.New(nixopserrors.KindPathCollision, fmt.Sprintf("additionalFiles entry %q has no content source", af.Path))
		}
	}
	if err := injector.ValidatePaths(files); err != nil {
		return nil, err
	}
	return files, nil
}

func renderFacts(facts map[string]string) []byte {
	sorted := make([]string, 0, len(facts))
	for k := range facts {
		sorted = append(sorted, k)
	}
	sort.Strings(sorted)

	var out []byte
	for _, k := range sorted {
		out = append(out, []byte(k+"="+facts[k]+"\n")...)
	}
	return out
}

func toFingerprintFiles(files []injector.File) []fingerprint.FileInput {
	out := make([]fingerprint.FileInput, len(files))
	for i, f := range files {
		out[i] = fingerprint.FileInput{Path: f.Path, Content: f.Content, Mode: f.Mode}
	}
	return out
}

func (rec *reconcileRecord) bumpRetry() int {
	rec.retryCount++
	return rec.retryCount
}

// SetupWithManager wires the reconciler into the manager.
func (r *NixosConfigurationReconciler) SetupWithManager(mgr ctrl.Manager) error {
	r.records = newRecordStore()
	return ctrl.NewControllerManagedBy(mgr).
		For(&appsv1alpha1.NixosConfiguration{}).
		WithOptions(controller.Options{MaxConcurrentReconciles: r.Config.MaxConcurrentReconciles}).
		Named("nixosconfiguration").
		Complete(r)
}

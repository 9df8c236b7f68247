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

	corev1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/runtime"
	"k8s.io/client-go/tools/record"
	"k8s.io/client-go/util/retry"
	ctrl "sigs.k8s.io/controller-runtime"
	"sigs.k8s.io/controller-runtime/pkg/client"
	"sigs.k8s.io/controller-runtime/pkg/log"

	appsv1alpha1 "github.com/nixops-sh/nixops-operator/api/v1alpha1"
	"github.com/nixops-sh/nixops-operator/internal/config"
	"github.com/nixops-sh/nixops-operator/internal/facts"
	nixopserrors "github.com/nixops-sh/nixops-operator/internal/errors"
	"github.com/nixops-sh/nixops-operator/internal/sshtransport"
	"github.com/nixops-sh/nixops-operator/internal/vault"
)

// MachineReconciler reconciles a Machine by probing reachability and, when
// reachable, refreshing its hardware fact map. It never mutates ownership
// fields; those belong to NixosConfigurationReconciler.
type MachineReconciler struct {
	client.Client
	Scheme    *runtime.Scheme
	Recorder  record.EventRecorder
	Vault     *vault.Vault
	Transport sshtransport.Transport
	Config    config.Config
}

// +kubebuilder:rbac:groups=apps.nixops.sh,resources=machines,verbs=get;list;watch;update;patch
// +kubebuilder:rbac:groups=apps.nixops.sh,resources=machines/status,verbs=get;update;patch
// +kubebuilder:rbac:groups="",resources=secrets,verbs=get;list;watch
// +kubebuilder:rbac:groups="",resources=events,verbs=create;patch

func (r *MachineReconciler) Reconcile(ctx context.Context, req ctrl.Request) (ctrl.Result, error) {
	logger := log.FromContext(ctx)

	var m appsv1alpha1.Machine
	if err := r.Get(ctx, req.NamespacedName, &m); err != nil {
		if apierrors.IsNotFound(err) {
			return ctrl.Result{}, nil
		}
		return ctrl.Result{}, err
	}

	base := m.DeepCopy()

	target, err := r.resolveTarget(ctx, &m)
	if err != nil {
		re, _ := nixopserrors.As(err)
		m.Status.Reachable = false
		setCondition(&m.Status.Conditions, CondReachable, metav1.ConditionFalse, string(re.Kind), re.Error(), m.Generation)
		if patchErr := r.patchStatus(ctx, &m, base); patchErr != nil {
			logger.Error(patchErr, "patching Machine status after secret error")
		}
		return ctrl.Result{RequeueAfter: r.Config.DiscoveryInterval}, nil
	}

	probeErr := r.Transport.Probe(ctx, target)
	now := metav1.Now()

	if probeErr != nil {
		re, ok := nixopserrors.As(probeErr)
		reason := "Unreachable"
		if ok {
			reason = string(re.Kind)
		}
		wasReachable := m.Status.Reachable
		m.Status.Reachable = false
		setCondition(&m.Status.Conditions, CondReachable, metav1.ConditionFalse, reason, probeErr.Error(), m.Generation)
		if ok && re.Kind == nixopserrors.KindHostKeyMismatch {
			setCondition(&m.Status.Conditions, CondHostKeyMismatch, metav1.ConditionTrue, reason, probeErr.Error(), m.Generation)
		}
		if wasReachable {
			r.Recorder.Eventf(&m, corev1.EventTypeWarning, reason, "Machine became unreachable: %s", probeErr.Error())
		}
		if err := r.patchStatus(ctx, &m, base); err != nil {
			return ctrl.Result{}, err
		}
		return ctrl.Result{RequeueAfter: r.Config.DiscoveryInterval}, nil
	}

	wasReachable := m.Status.Reachable
	m.Status.Reachable = true
	m.Status.LastReachableAt = &now
	setCondition(&m.Status.Conditions, CondReachable, metav1.ConditionTrue, "Probed", "SSH probe succeeded", m.Generation)
	if !wasReachable {
		r.Recorder.Event(&m, corev1.EventTypeNormal, "Reachable", "Machine became reachable")
	}

	collected, err := facts.Collect(ctx, r.Transport, target)
	if err != nil {
		logger.Error(err, "collecting hardware facts", "machine", req.NamespacedName)
		setCondition(&m.Status.Conditions, CondFactsCollected, metav1.ConditionFalse, "CollectFailed", err.Error(), m.Generation)
	} else {
		m.Status.Facts = collected
		setCondition(&m.Status.Conditions, CondFactsCollected, metav1.ConditionTrue, "Collected", "Hardware facts refreshed", m.Generation)
	}

	if err := r.patchStatus(ctx, &m, base); err != nil {
		return ctrl.Result{}, err
	}

	return ctrl.Result{RequeueAfter: r.Config.DiscoveryInterval}, nil
}

func (r *MachineReconciler) resolveTarget(ctx context.Context, m *appsv1alpha1.Machine) (sshtransport.Target, error) {
	handle, err := r.Vault.LoadSSHKey(ctx, m.Namespace, m.Spec.SSHKeySecretRef.Name)
	if err != nil {
		return sshtransport.Target{}, err
	}
	return sshtransport.Target{
		Hostname: m.Spec.Hostname,
		User:     m.Spec.SSHUser,
		Port:     m.Spec.SSHPort,
		Key:      handle,
	}, nil
}

// patchStatus retries the status patch internally on conflict, bounded by
// retry.DefaultRetry (5 steps), before surfacing a terminal
// KindStatusConflict; this is distinct from the reconcile-level retry
// budget, which governs genuine operational failures rather than ordinary
// concurrent-writer churn on the same object.
func (r *MachineReconciler) patchStatus(ctx context.Context, m *appsv1alpha1.Machine, base *appsv1alpha1.Machine) error {
	err := retry.RetryOnConflict(retry.DefaultRetry, func() error {
		return r.Status().Patch(ctx, m, client.MergeFrom(base))
	})
	if err != nil {
		if apierrors.IsConflict(err) {
			return nixopserrors.Wrap(nixopserrors.KindStatusConflict, "patching Machine status", err)
		}
		return err
	}
	return nil
}

// SetupWithManager wires the reconciler into the manager, watching Machine
// objects only; a change to a referenced SSH key Secret does not by itself
// trigger a reconcile.
func (r *MachineReconciler) SetupWithManager(mgr ctrl.Manager) error {
	return ctrl.NewControllerManagedBy(mgr).
		For(&appsv1alpha1.Machine{}).
		Named("machine").
		Complete(r)
}

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
	"errors"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/types"
	"k8s.io/client-go/tools/record"
	ctrl "sigs.k8s.io/controller-runtime"
	"sigs.k8s.io/controller-runtime/pkg/client"

	appsv1alpha1 "github.com/nixops-sh/nixops-operator/api/v1alpha1"
	"github.com/nixops-sh/nixops-operator/internal/applier"
	"github.com/nixops-sh/nixops-operator/internal/backoff"
	"github.com/nixops-sh/nixops-operator/internal/config"
	nixopserrors "github.com/nixops-sh/nixops-operator/internal/errors"
	"github.com/nixops-sh/nixops-operator/internal/gitworkspace/fakegit"
	"github.com/nixops-sh/nixops-operator/internal/sshtransport/faketransport"
	"github.com/nixops-sh/nixops-operator/internal/vault"
)

const (
	testNamespace = "default"
	testCommit    = "c0ffee00c0ffee00c0ffee00c0ffee00c0ffee00"
)

var errBoom = errors.New("boom")

// fakeApplier is a scriptable applierClient double recording every Apply
// call a test cares about, without spawning a real nixos-rebuild/
// nixos-anywhere subprocess.
type fakeApplier struct {
	calls  []applier.Input
	result applier.Result
	err    error
}

func (f *fakeApplier) Apply(ctx context.Context, in applier.Input) (applier.Result, error) {
	f.calls = append(f.calls, in)
	return f.result, f.err
}

func sshSecret(name string) *corev1.Secret {
	return &corev1.Secret{
		ObjectMeta: metav1.ObjectMeta{Name: name, Namespace: testNamespace},
		Data:       map[string][]byte{"ssh-privatekey": []byte("fake-key-material")},
	}
}

func testMachine(name, hostname string) *appsv1alpha1.Machine {
	return &appsv1alpha1.Machine{
		ObjectMeta: metav1.ObjectMeta{Name: name, Namespace: testNamespace},
		Spec: appsv1alpha1.MachineSpec{
			Hostname:        hostname,
			SSHUser:         "root",
			SSHPort:         22,
			SSHKeySecretRef: corev1.LocalObjectReference{Name: name + "-key"},
		},
	}
}

func testNixosConfiguration(name, machineName, gitRepo string) *appsv1alpha1.NixosConfiguration {
	return &appsv1alpha1.NixosConfiguration{
		ObjectMeta: metav1.ObjectMeta{Name: name, Namespace: testNamespace, Finalizers: []string{finalizerName}},
		Spec: appsv1alpha1.NixosConfigurationSpec{
			MachineRef: corev1.LocalObjectReference{Name: machineName},
			GitRepo:    gitRepo,
			GitRef:     "main",
			Flake:      "nixosConfigurations.host1",
		},
	}
}

var _ = Describe("NixosConfigurationReconciler", func() {
	var (
		ctx        context.Context
		machine    *appsv1alpha1.Machine
		cfg        *appsv1alpha1.NixosConfiguration
		transport  *faketransport.Transport
		git        *fakegit.Client
		apply      *fakeApplier
		k8sClient  client.Client
		reconciler *NixosConfigurationReconciler
	)

	req := func() ctrl.Request {
		return ctrl.Request{NamespacedName: types.NamespacedName{Namespace: testNamespace, Name: cfg.Name}}
	}

	BeforeEach(func() {
		ctx = context.Background()
		machine = testMachine("host1", "host1.example.com")
		cfg = testNixosConfiguration("cfg1", "host1", "git@example.com:org/system-config.git")
		secret := sshSecret("host1-key")

		transport = faketransport.New()
		git = fakegit.New(GinkgoT().TempDir())
		git.AddRepo(cfg.Spec.GitRepo, fakegit.Repo{Refs: map[string]string{"main": testCommit}})
		apply = &fakeApplier{}
		k8sClient = newFakeClient(machine, cfg, secret)

		reconciler = &NixosConfigurationReconciler{
			Client:    k8sClient,
			Scheme:    testScheme,
			Recorder:  record.NewFakeRecorder(100),
			Vault:     vault.New(k8sClient),
			Transport: transport,
			Git:       git,
			Applier:   apply,
			Backoff: backoff.New(config.Config{
				RetryInitialDelay:    10 * time.Millisecond,
				RetryMaxDelay:        50 * time.Millisecond,
				RetryExponentialBase: 2.0,
			}),
			Metrics: testMetrics,
			Config: config.Config{
				ReconcileInterval: time.Minute,
				RetryMaxAttempts:  3,
				ApplyTimeout:      time.Minute,
			},
		}
	})

	It("applies a switch and records ownership on the happy path", func() {
		result, err := reconciler.Reconcile(ctx, req())
		Expect(err).NotTo(HaveOccurred())
		Expect(result.RequeueAfter).To(BeNumerically(">", 0))
		Expect(apply.calls).To(HaveLen(1))
		Expect(apply.calls[0].Mode).To(Equal(applier.ModeSwitch))

		var updated appsv1alpha1.NixosConfiguration
		Expect(k8sClient.Get(ctx, types.NamespacedName{Namespace: testNamespace, Name: cfg.Name}, &updated)).To(Succeed())
		Expect(updated.Status.Phase).To(Equal(appsv1alpha1.PhaseApplied))
		Expect(updated.Status.AppliedCommit).To(Equal(testCommit))

		var updatedMachine appsv1alpha1.Machine
		Expect(k8sClient.Get(ctx, types.NamespacedName{Namespace: testNamespace, Name: machine.Name}, &updatedMachine)).To(Succeed())
		Expect(updatedMachine.Status.AppliedConfiguration).To(Equal(cfg.Name))
		Expect(updatedMachine.Status.AppliedCommit).To(Equal(testCommit))
	})

	It("uses bootstrap mode when fullInstall is set", func() {
		current := cfg.DeepCopy()
		Expect(k8sClient.Get(ctx, types.NamespacedName{Namespace: testNamespace, Name: cfg.Name}, current)).To(Succeed())
		current.Spec.FullInstall = true
		Expect(k8sClient.Update(ctx, current)).To(Succeed())

		_, err := reconciler.Reconcile(ctx, req())
		Expect(err).NotTo(HaveOccurred())
		Expect(apply.calls).To(HaveLen(1))
		Expect(apply.calls[0].Mode).To(Equal(applier.ModeBootstrap))
	})

	It("does not re-apply on a second tick once the desired state is already applied", func() {
		_, err := reconciler.Reconcile(ctx, req())
		Expect(err).NotTo(HaveOccurred())
		Expect(apply.calls).To(HaveLen(1))

		_, err = reconciler.Reconcile(ctx, req())
		Expect(err).NotTo(HaveOccurred())
		Expect(apply.calls).To(HaveLen(1), "an idempotent re-tick must not trigger a second apply")
	})

	It("re-applies once a spec change alters the fingerprint", func() {
		_, err := reconciler.Reconcile(ctx, req())
		Expect(err).NotTo(HaveOccurred())
		Expect(apply.calls).To(HaveLen(1))

		var current appsv1alpha1.NixosConfiguration
		Expect(k8sClient.Get(ctx, types.NamespacedName{Namespace: testNamespace, Name: cfg.Name}, &current)).To(Succeed())
		current.Spec.Flake = "nixosConfigurations.host1-v2"
		Expect(k8sClient.Update(ctx, &current)).To(Succeed())

		_, err = reconciler.Reconcile(ctx, req())
		Expect(err).NotTo(HaveOccurred())
		Expect(apply.calls).To(HaveLen(2))
	})

	It("surfaces a host key mismatch as a terminal condition without attempting an apply", func() {
		transport.HostKeyMismatch[machine.Spec.Hostname] = true

		_, err := reconciler.Reconcile(ctx, req())
		Expect(err).NotTo(HaveOccurred())
		Expect(apply.calls).To(BeEmpty())

		var updated appsv1alpha1.NixosConfiguration
		Expect(k8sClient.Get(ctx, types.NamespacedName{Namespace: testNamespace, Name: cfg.Name}, &updated)).To(Succeed())
		Expect(updated.Status.Phase).To(Equal(appsv1alpha1.PhaseFailed))
		status, ok := conditionStatus(updated.Status.Conditions, CondReady)
		Expect(ok).To(BeTrue())
		Expect(status).To(Equal(metav1.ConditionFalse))
	})

	It("rejects ownership of a Machine already claimed by another configuration", func() {
		var current appsv1alpha1.Machine
		Expect(k8sClient.Get(ctx, types.NamespacedName{Namespace: testNamespace, Name: machine.Name}, &current)).To(Succeed())
		current.Status.AppliedConfiguration = "someone-else"
		Expect(k8sClient.Status().Update(ctx, &current)).To(Succeed())

		_, err := reconciler.Reconcile(ctx, req())
		Expect(err).NotTo(HaveOccurred())
		Expect(apply.calls).To(BeEmpty())

		var updated appsv1alpha1.NixosConfiguration
		Expect(k8sClient.Get(ctx, types.NamespacedName{Namespace: testNamespace, Name: cfg.Name}, &updated)).To(Succeed())
		Expect(updated.Status.Phase).To(Equal(appsv1alpha1.PhaseFailed))
		Expect(updated.Status.LastError).To(ContainSubstring("someone-else"))
	})

	It("leaves a Paused configuration alone", func() {
		var current appsv1alpha1.NixosConfiguration
		Expect(k8sClient.Get(ctx, types.NamespacedName{Namespace: testNamespace, Name: cfg.Name}, &current)).To(Succeed())
		current.Spec.Paused = true
		Expect(k8sClient.Update(ctx, &current)).To(Succeed())

		_, err := reconciler.Reconcile(ctx, req())
		Expect(err).NotTo(HaveOccurred())
		Expect(apply.calls).To(BeEmpty())

		var updated appsv1alpha1.NixosConfiguration
		Expect(k8sClient.Get(ctx, types.NamespacedName{Namespace: testNamespace, Name: cfg.Name}, &updated)).To(Succeed())
		status, ok := conditionStatus(updated.Status.Conditions, CondReady)
		Expect(ok).To(BeTrue())
		Expect(status).To(Equal(metav1.ConditionFalse))
	})

	Describe("deletion", func() {
		BeforeEach(func() {
			var current appsv1alpha1.NixosConfiguration
			Expect(k8sClient.Get(ctx, types.NamespacedName{Namespace: testNamespace, Name: cfg.Name}, &current)).To(Succeed())
			current.Spec.OnRemoveFlake = appsv1alpha1.OnRemoveFlake{Flake: "baseline", SkipOnUnreachable: true}
			Expect(k8sClient.Update(ctx, &current)).To(Succeed())

			_, err := reconciler.Reconcile(ctx, req())
			Expect(err).NotTo(HaveOccurred())
			apply.calls = nil

			Expect(k8sClient.Get(ctx, types.NamespacedName{Namespace: testNamespace, Name: machine.Name}, machine)).To(Succeed())
			Expect(machine.Status.AppliedConfiguration).To(Equal(cfg.Name))
		})

		It("skips tear-down and clears ownership when the machine is unreachable and skipOnUnreachable is set", func() {
			transport.Reachable[machine.Spec.Hostname] = false

			var toDelete appsv1alpha1.NixosConfiguration
			Expect(k8sClient.Get(ctx, types.NamespacedName{Namespace: testNamespace, Name: cfg.Name}, &toDelete)).To(Succeed())
			Expect(k8sClient.Delete(ctx, &toDelete)).To(Succeed())

			_, err := reconciler.Reconcile(ctx, req())
			Expect(err).NotTo(HaveOccurred())
			Expect(apply.calls).To(BeEmpty())

			var gone appsv1alpha1.NixosConfiguration
			err = k8sClient.Get(ctx, types.NamespacedName{Namespace: testNamespace, Name: cfg.Name}, &gone)
			Expect(err).To(HaveOccurred())

			var updatedMachine appsv1alpha1.Machine
			Expect(k8sClient.Get(ctx, types.NamespacedName{Namespace: testNamespace, Name: machine.Name}, &updatedMachine)).To(Succeed())
			Expect(updatedMachine.Status.AppliedConfiguration).To(BeEmpty())
		})

		It("applies the baseline flake before releasing ownership when the machine is reachable", func() {
			git.AddRepo(cfg.Spec.GitRepo, fakegit.Repo{Refs: map[string]string{
				"main":     testCommit,
				"baseline": "base000base000base000base000base000base0",
			}})

			var toDelete appsv1alpha1.NixosConfiguration
			Expect(k8sClient.Get(ctx, types.NamespacedName{Namespace: testNamespace, Name: cfg.Name}, &toDelete)).To(Succeed())
			Expect(k8sClient.Delete(ctx, &toDelete)).To(Succeed())

			_, err := reconciler.Reconcile(ctx, req())
			Expect(err).NotTo(HaveOccurred())
			Expect(apply.calls).To(HaveLen(1))
			Expect(apply.calls[0].Flake).To(Equal("baseline"))

			var updatedMachine appsv1alpha1.Machine
			Expect(k8sClient.Get(ctx, types.NamespacedName{Namespace: testNamespace, Name: machine.Name}, &updatedMachine)).To(Succeed())
			Expect(updatedMachine.Status.AppliedConfiguration).To(BeEmpty())
		})

		It("holds the finalizer and requeues when a reachable tear-down apply fails", func() {
			git.AddRepo(cfg.Spec.GitRepo, fakegit.Repo{Refs: map[string]string{
				"main":     testCommit,
				"baseline": "base000base000base000base000base000base0",
			}})
			apply.err = nixopserrors.Wrap(nixopserrors.KindNetworkError, "applier subprocess unreachable", errBoom)

			var toDelete appsv1alpha1.NixosConfiguration
			Expect(k8sClient.Get(ctx, types.NamespacedName{Namespace: testNamespace, Name: cfg.Name}, &toDelete)).To(Succeed())
			Expect(k8sClient.Delete(ctx, &toDelete)).To(Succeed())

			result, err := reconciler.Reconcile(ctx, req())
			Expect(err).NotTo(HaveOccurred())
			Expect(result.RequeueAfter).To(BeNumerically(">", 0))

			var stillThere appsv1alpha1.NixosConfiguration
			Expect(k8sClient.Get(ctx, types.NamespacedName{Namespace: testNamespace, Name: cfg.Name}, &stillThere)).To(Succeed())
			Expect(stillThere.Finalizers).To(ContainElement(finalizerName))
		})
	})
})

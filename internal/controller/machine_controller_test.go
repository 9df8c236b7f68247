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
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/types"
	"k8s.io/client-go/tools/record"
	ctrl "sigs.k8s.io/controller-runtime"
	"sigs.k8s.io/controller-runtime/pkg/client"

	appsv1alpha1 "github.com/nixops-sh/nixops-operator/api/v1alpha1"
	"github.com/nixops-sh/nixops-operator/internal/config"
	"github.com/nixops-sh/nixops-operator/internal/sshtransport"
	"github.com/nixops-sh/nixops-operator/internal/sshtransport/faketransport"
	"github.com/nixops-sh/nixops-operator/internal/vault"
)

const machineDiscoveryInterval = time.Minute

var _ = Describe("MachineReconciler", func() {
	var (
		ctx        context.Context
		machine    *appsv1alpha1.Machine
		transport  *faketransport.Transport
		k8sClient  client.Client
		reconciler *MachineReconciler
	)

	req := func() ctrl.Request {
		return ctrl.Request{NamespacedName: types.NamespacedName{Namespace: testNamespace, Name: machine.Name}}
	}

	BeforeEach(func() {
		ctx = context.Background()
		machine = testMachine("host2", "host2.example.com")
		secret := sshSecret("host2-key")

		transport = faketransport.New()
		k8sClient = newFakeClient(machine, secret)

		reconciler = &MachineReconciler{
			Client:    k8sClient,
			Scheme:    testScheme,
			Recorder:  record.NewFakeRecorder(100),
			Vault:     vault.New(k8sClient),
			Transport: transport,
			Config:    config.Config{DiscoveryInterval: machineDiscoveryInterval},
		}
	})

	It("marks a Machine reachable and records hardware facts after a successful probe", func() {
		transport.ExecHandler = func(ctx context.Context, target sshtransport.Target, cmd string) (sshtransport.Result, error) {
			return sshtransport.Result{Stdout: "os.name=Linux\nos.id=nixos\n"}, nil
		}

		result, err := reconciler.Reconcile(ctx, req())
		Expect(err).NotTo(HaveOccurred())
		Expect(result.RequeueAfter).To(Equal(machineDiscoveryInterval))

		var updated appsv1alpha1.Machine
		Expect(k8sClient.Get(ctx, types.NamespacedName{Namespace: testNamespace, Name: machine.Name}, &updated)).To(Succeed())
		Expect(updated.Status.Reachable).To(BeTrue())
		status, ok := conditionStatus(updated.Status.Conditions, CondReachable)
		Expect(ok).To(BeTrue())
		Expect(status).To(Equal(metav1.ConditionTrue))
		Expect(updated.Status.Facts).To(HaveKeyWithValue("os.name", "Linux"))
	})

	It("marks a Machine unreachable without touching ownership fields", func() {
		transport.Reachable[machine.Spec.Hostname] = false

		_, err := reconciler.Reconcile(ctx, req())
		Expect(err).NotTo(HaveOccurred())

		var updated appsv1alpha1.Machine
		Expect(k8sClient.Get(ctx, types.NamespacedName{Namespace: testNamespace, Name: machine.Name}, &updated)).To(Succeed())
		Expect(updated.Status.Reachable).To(BeFalse())
		status, ok := conditionStatus(updated.Status.Conditions, CondReachable)
		Expect(ok).To(BeTrue())
		Expect(status).To(Equal(metav1.ConditionFalse))
		Expect(updated.Status.AppliedConfiguration).To(BeEmpty())
	})

	It("surfaces a host key mismatch condition", func() {
		transport.HostKeyMismatch[machine.Spec.Hostname] = true

		_, err := reconciler.Reconcile(ctx, req())
		Expect(err).NotTo(HaveOccurred())

		var updated appsv1alpha1.Machine
		Expect(k8sClient.Get(ctx, types.NamespacedName{Namespace: testNamespace, Name: machine.Name}, &updated)).To(Succeed())
		status, ok := conditionStatus(updated.Status.Conditions, CondHostKeyMismatch)
		Expect(ok).To(BeTrue())
		Expect(status).To(Equal(metav1.ConditionTrue))
	})
})

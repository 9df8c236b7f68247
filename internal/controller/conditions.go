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
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
)

// Condition type vocabulary pinned by the data model.
const (
	CondReachable      = "Reachable"
	CondHostKeyMismatch = "HostKeyMismatch"
	CondFactsCollected = "FactsCollected"
	CondReady          = "Ready"
)

// finalizerName is the engine-owned finalizer placed on every
// NixosConfiguration so deletion can run an optional tear-down first.
const finalizerName = "apps.nixops.sh/teardown"

// setCondition replaces an existing condition of the same type, or appends
// a new one, preserving LastTransitionTime when the status hasn't actually
// changed. Mirrors the stoker-operator convention this codebase has no
// equivalent of natively.
func setCondition(conditions *[]metav1.Condition, condType string, status metav1.ConditionStatus, reason, message string, generation int64) {
	now := metav1.Now()
	for i := range *conditions {
		c := &(*conditions)[i]
		if c.Type != condType {
			continue
		}
		if c.Status != status {
			c.LastTransitionTime = now
		}
		c.Status = status
		c.Reason = reason
		c.Message = message
		c.ObservedGeneration = generation
		return
	}
	*conditions = append(*conditions, metav1.Condition{
		Type:               condType,
		Status:             status,
		Reason:             reason,
		Message:            message,
		ObservedGeneration: generation,
		LastTransitionTime: now,
	})
}

func conditionStatus(conditions []metav1.Condition, condType string) (metav1.ConditionStatus, bool) {
	for _, c := range conditions {
		if c.Type == condType {
			return c.Status, true
		}
	}
	return "", false
}

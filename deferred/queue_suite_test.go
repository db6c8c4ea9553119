// Package deferred_test exercises the deferred-delete queue via Ginkgo.
package deferred_test

import (
	"testing"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
)

func TestDeferred(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, t.Name())
}

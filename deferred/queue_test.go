package deferred_test

import (
	"os"
	"path/filepath"
	"time"

	"github.com/aistore/movefabric/deferred"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
)

type fakePublisher struct {
	topics []string
	uris   []string
}

func (f *fakePublisher) PublishDel(topic, uri string) {
	f.topics = append(f.topics, topic)
	f.uris = append(f.uris, uri)
}

var _ = Describe("Queue", func() {
	var (
		dir string
		q   *deferred.Queue
		pub *fakePublisher
	)

	BeforeEach(func() {
		dir = GinkgoT().TempDir()
		pub = &fakePublisher{}
		q = deferred.New(pub)
		go q.Run()
	})

	AfterEach(func() {
		q.Stop()
	})

	It("removes the file no earlier than its deadline", func() {
		path := filepath.Join(dir, "a.dat")
		Expect(os.WriteFile(path, []byte("x"), 0o644)).To(Succeed())

		q.Add(path, 80*time.Millisecond, "/deletion", "file:///a.dat", deferred.StatMTime)

		Consistently(func() error {
			_, err := os.Stat(path)
			return err
		}, "50ms", "10ms").Should(Succeed())

		Eventually(func() bool {
			_, err := os.Stat(path)
			return os.IsNotExist(err)
		}, "500ms", "10ms").Should(BeTrue())

		Expect(pub.topics).To(ContainElement("/deletion"))
	})

	It("treats a missing file as a non-error and keeps running", func() {
		q.Add(filepath.Join(dir, "does-not-exist.dat"), 10*time.Millisecond, "", "", deferred.StatMTime)

		path := filepath.Join(dir, "b.dat")
		Expect(os.WriteFile(path, []byte("x"), 0o644)).To(Succeed())
		q.Add(path, 20*time.Millisecond, "/deletion", "file:///b.dat", deferred.StatMTime)

		Eventually(func() bool {
			_, err := os.Stat(path)
			return os.IsNotExist(err)
		}, "500ms", "10ms").Should(BeTrue())
	})

	It("reports pending count via Len", func() {
		q.Add(filepath.Join(dir, "c.dat"), time.Hour, "", "", deferred.StatMTime)
		q.Add(filepath.Join(dir, "d.dat"), time.Hour, "", "", deferred.StatMTime)
		Expect(q.Len()).To(Equal(2))
	})
})

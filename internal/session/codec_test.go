package session

import (
	"testing"

	"github.com/onsi/ginkgo/v2"
	"github.com/onsi/gomega"

	"github.com/assignwork/assignwork/internal/user"
)

func TestSession(t *testing.T) {
	gomega.RegisterFailHandler(ginkgo.Fail)
	ginkgo.RunSpecs(t, "Session Module Suite")
}

const testSecret = "0123456789abcdef0123456789abcdef"

var _ = ginkgo.Describe("Codec", func() {
	var codec *Codec

	ginkgo.BeforeEach(func() {
		var err error
		codec, err = NewCodec(testSecret)
		gomega.Expect(err).NotTo(gomega.HaveOccurred())
	})

	ginkgo.It("rejects secrets shorter than 32 characters", func() {
		_, err := NewCodec("too-short")
		gomega.Expect(err).To(gomega.HaveOccurred())
	})

	ginkgo.It("round-trips a session", func() {
		original := Session{
			User:         user.User{ID: 7, Email: "a@example.com", Username: "a"},
			AccessToken:  "access",
			RefreshToken: "refresh",
			ExpiresAt:    1234567890000,
		}

		blob, err := codec.Seal(&original)
		gomega.Expect(err).NotTo(gomega.HaveOccurred())

		var decoded Session
		gomega.Expect(codec.Open(blob, &decoded)).To(gomega.Succeed())
		gomega.Expect(decoded).To(gomega.Equal(original))
	})

	ginkgo.It("produces an opaque blob", func() {
		blob, err := codec.Seal(&Session{AccessToken: "super-secret-token"})
		gomega.Expect(err).NotTo(gomega.HaveOccurred())
		gomega.Expect(blob).NotTo(gomega.ContainSubstring("super-secret-token"))
	})

	ginkgo.It("rejects tampered blobs", func() {
		blob, err := codec.Seal(&Session{AccessToken: "x"})
		gomega.Expect(err).NotTo(gomega.HaveOccurred())

		tampered := []byte(blob)
		if tampered[len(tampered)-1] == 'A' {
			tampered[len(tampered)-1] = 'B'
		} else {
			tampered[len(tampered)-1] = 'A'
		}

		var decoded Session
		gomega.Expect(codec.Open(string(tampered), &decoded)).To(gomega.MatchError(ErrInvalidPayload))
	})

	ginkgo.It("rejects blobs sealed under a different key", func() {
		other, err := NewCodec("ffffffffffffffffffffffffffffffff")
		gomega.Expect(err).NotTo(gomega.HaveOccurred())

		blob, err := other.Seal(&Session{AccessToken: "x"})
		gomega.Expect(err).NotTo(gomega.HaveOccurred())

		var decoded Session
		gomega.Expect(codec.Open(blob, &decoded)).To(gomega.MatchError(ErrInvalidPayload))
	})

	ginkgo.It("rejects garbage and truncated input", func() {
		var decoded Session
		gomega.Expect(codec.Open("not base64 ???", &decoded)).To(gomega.MatchError(ErrInvalidPayload))
		gomega.Expect(codec.Open("AAAA", &decoded)).To(gomega.MatchError(ErrInvalidPayload))
		gomega.Expect(codec.Open("", &decoded)).To(gomega.MatchError(ErrInvalidPayload))
	})
})

package user

import (
	"context"
	"errors"
	"testing"

	"github.com/onsi/ginkgo/v2"
	"github.com/onsi/gomega"

	"github.com/assignwork/assignwork/internal"
	"github.com/assignwork/assignwork/internal/oauth"
	"github.com/assignwork/assignwork/pkg/logger"
)

func TestUser(t *testing.T) {
	gomega.RegisterFailHandler(ginkgo.Fail)
	ginkgo.RunSpecs(t, "User Module Suite")
}

type mockRepository struct {
	byID       map[int64]*User
	byEmail    map[string]*User
	byUsername map[string]*User
	nextID     int64

	returnError   bool
	errorToReturn error
}

func newMockRepository() *mockRepository {
	return &mockRepository{
		byID:       map[int64]*User{},
		byEmail:    map[string]*User{},
		byUsername: map[string]*User{},
		nextID:     1,
	}
}

func (m *mockRepository) add(u *User) *User {
	u.ID = m.nextID
	m.nextID++
	m.byID[u.ID] = u
	m.byEmail[u.Email] = u
	m.byUsername[u.Username] = u
	return u
}

func (m *mockRepository) setError(err error) {
	m.returnError = true
	m.errorToReturn = err
}

func (m *mockRepository) GetByID(_ context.Context, id int64) (*User, error) {
	if m.returnError {
		return nil, m.errorToReturn
	}
	if u, ok := m.byID[id]; ok {
		return u, nil
	}
	return nil, ErrNotFound
}

func (m *mockRepository) GetByEmail(_ context.Context, email string) (*User, error) {
	if m.returnError {
		return nil, m.errorToReturn
	}
	if u, ok := m.byEmail[email]; ok {
		return u, nil
	}
	return nil, ErrNotFound
}

func (m *mockRepository) GetByUsername(_ context.Context, username string) (*User, error) {
	if m.returnError {
		return nil, m.errorToReturn
	}
	if u, ok := m.byUsername[username]; ok {
		return u, nil
	}
	return nil, ErrNotFound
}

func (m *mockRepository) Create(_ context.Context, u *User) error {
	if m.returnError {
		return m.errorToReturn
	}
	if _, exists := m.byEmail[u.Email]; exists {
		return ErrDuplicate
	}
	if _, exists := m.byUsername[u.Username]; exists {
		return ErrDuplicate
	}
	m.add(u)
	return nil
}

func (m *mockRepository) Delete(_ context.Context, id int64) error {
	if m.returnError {
		return m.errorToReturn
	}
	u, ok := m.byID[id]
	if !ok {
		return ErrNotFound
	}
	delete(m.byID, id)
	delete(m.byEmail, u.Email)
	delete(m.byUsername, u.Username)
	return nil
}

var _ = ginkgo.Describe("User Service", func() {
	var (
		service *Service
		repo    *mockRepository
		ctx     context.Context
	)

	ginkgo.BeforeEach(func() {
		repo = newMockRepository()
		ctx = context.Background()
		service = NewService(repo, nil, logger.L())
	})

	ginkgo.Describe("FindLocalUser", func() {
		ginkgo.It("prefers the email match when both lookups would hit different rows", func() {
			byEmail := repo.add(&User{Email: "alice@example.com", Username: "alice_old"})
			repo.add(&User{Email: "other@example.com", Username: "alice"})

			u, err := service.FindLocalUser(ctx, "alice@example.com", "alice")
			gomega.Expect(err).NotTo(gomega.HaveOccurred())
			gomega.Expect(u.ID).To(gomega.Equal(byEmail.ID))
		})

		ginkgo.It("falls back to username when email finds nothing", func() {
			stored := repo.add(&User{Email: "bob@example.com", Username: "bob"})

			u, err := service.FindLocalUser(ctx, "bob@corp.example.com", "bob")
			gomega.Expect(err).NotTo(gomega.HaveOccurred())
			gomega.Expect(u.ID).To(gomega.Equal(stored.ID))
		})

		ginkgo.It("reports not found when neither matches", func() {
			_, err := service.FindLocalUser(ctx, "ghost@example.com", "ghost")
			gomega.Expect(err).To(gomega.MatchError(ErrNotFound))
		})
	})

	ginkgo.Describe("SyncUserFromSSO", func() {
		identity := oauth.Identity{ExternalID: "ext-1", Email: "carol@example.com", Username: "carol"}

		ginkgo.It("returns the existing local record", func() {
			stored := repo.add(&User{Email: "carol@example.com", Username: "carol"})

			result := service.SyncUserFromSSO(ctx, identity)
			gomega.Expect(result.Success).To(gomega.BeTrue())
			gomega.Expect(result.UserExists).To(gomega.BeTrue())
			gomega.Expect(result.User.ID).To(gomega.Equal(stored.ID))
		})

		ginkgo.It("never provisions on login", func() {
			result := service.SyncUserFromSSO(ctx, identity)
			gomega.Expect(result.Success).To(gomega.BeFalse())
			gomega.Expect(result.UserExists).To(gomega.BeFalse())
			gomega.Expect(result.Error).To(gomega.Equal(internal.ErrCodeUserNotFound))

			// the store stays untouched
			gomega.Expect(repo.byEmail).To(gomega.BeEmpty())
		})

		ginkgo.It("distinguishes store failures from missing users", func() {
			repo.setError(errors.New("connection refused"))

			result := service.SyncUserFromSSO(ctx, identity)
			gomega.Expect(result.Success).To(gomega.BeFalse())
			gomega.Expect(result.Error).To(gomega.Equal(internal.ErrCodeSyncError))
		})
	})

	ginkgo.Describe("ProvisionUserFromSSO", func() {
		identity := oauth.Identity{ExternalID: "ext-2", Email: "dave@example.com", Username: "dave"}

		ginkgo.It("creates the record on first call and reuses it afterwards", func() {
			first, err := service.ProvisionUserFromSSO(ctx, identity)
			gomega.Expect(err).NotTo(gomega.HaveOccurred())
			gomega.Expect(first.ID).NotTo(gomega.BeZero())

			second, err := service.ProvisionUserFromSSO(ctx, identity)
			gomega.Expect(err).NotTo(gomega.HaveOccurred())
			gomega.Expect(second.ID).To(gomega.Equal(first.ID))
			gomega.Expect(repo.byID).To(gomega.HaveLen(1))
		})

		ginkgo.It("persists exactly email and username", func() {
			u, err := service.ProvisionUserFromSSO(ctx, identity)
			gomega.Expect(err).NotTo(gomega.HaveOccurred())
			gomega.Expect(u.Email).To(gomega.Equal("dave@example.com"))
			gomega.Expect(u.Username).To(gomega.Equal("dave"))
		})
	})

	ginkgo.Describe("DeleteUser", func() {
		ginkgo.It("reports not found for an absent user", func() {
			gomega.Expect(service.DeleteUser(ctx, 42)).To(gomega.MatchError(ErrNotFound))
		})
	})
})

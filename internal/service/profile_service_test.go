package service

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"image"
	"image/jpeg"
	"image/png"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/practicum-api/internal/dto"
	"github.com/noah-isme/practicum-api/internal/models"
	appErrors "github.com/noah-isme/practicum-api/pkg/errors"
)

type memoryProfileRepo struct {
	users     map[string]*models.User
	imageErr  error
	imageURLs map[string]string
}

func (m *memoryProfileRepo) FindByID(ctx context.Context, id string) (*models.User, error) {
	if u, ok := m.users[id]; ok {
		cp := *u
		return &cp, nil
	}
	return nil, sql.ErrNoRows
}

func (m *memoryProfileRepo) UpdateProfile(ctx context.Context, user *models.User) error {
	cp := *user
	m.users[user.ID] = &cp
	return nil
}

func (m *memoryProfileRepo) UpdateProfileImage(ctx context.Context, id, url string) error {
	if m.imageErr != nil {
		return m.imageErr
	}
	m.imageURLs[id] = url
	return nil
}

func newProfileFixture() (*ProfileService, *memoryProfileRepo, *memoryObjectStore) {
	repo := &memoryProfileRepo{
		users:     map[string]*models.User{"2021001": {ID: "2021001", FirstName: "Siti", LastName: "Aminah", Email: "siti@example.com"}},
		imageURLs: map[string]string{},
	}
	objects := newMemoryObjectStore()
	svc := NewProfileService(repo, objects, &recordingActivities{}, nil, zap.NewNop(), ProfileConfig{ImageMaxBytes: 1 << 20, ImageDimension: 64})
	svc.now = func() time.Time { return time.UnixMilli(1726826400000) }
	return svc, repo, objects
}

func pngUpload(t *testing.T, w, h int) dto.ProfileImageUpload {
	t.Helper()
	buf := &bytes.Buffer{}
	require.NoError(t, png.Encode(buf, image.NewRGBA(image.Rect(0, 0, w, h))))
	return dto.ProfileImageUpload{FileName: "me.png", Size: int64(buf.Len()), Content: buf}
}

func TestProfileServiceUpdate(t *testing.T) {
	svc, repo, _ := newProfileFixture()

	user, err := svc.Update(context.Background(), "2021001", dto.UpdateProfileRequest{
		FirstName: " Siti ", LastName: "Rahma", Email: "SITI.R@Example.com", Phone: "0812",
	}, RequestMeta{})
	require.NoError(t, err)
	assert.Equal(t, "Siti", user.FirstName)
	assert.Equal(t, "siti.r@example.com", repo.users["2021001"].Email)
	require.NotNil(t, repo.users["2021001"].Phone)
	assert.Empty(t, repo.users["2021001"].MissingProfileFields())
}

func TestProfileServiceUpdateValidates(t *testing.T) {
	svc, _, _ := newProfileFixture()

	_, err := svc.Update(context.Background(), "2021001", dto.UpdateProfileRequest{FirstName: "Siti", LastName: "Rahma", Email: "not-an-email"}, RequestMeta{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrValidation))

	_, err = svc.Get(context.Background(), "ghost")
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrNotFound))
}

func TestProfileServiceUploadImage(t *testing.T) {
	svc, repo, objects := newProfileFixture()

	url, err := svc.UploadImage(context.Background(), "2021001", pngUpload(t, 200, 100), RequestMeta{})
	require.NoError(t, err)

	key := "profile_images/2021001_1726826400000.jpg"
	assert.Equal(t, "https://cdn.test/"+key, url)
	assert.Equal(t, url, repo.imageURLs["2021001"])
	require.Contains(t, objects.objects, key)

	img, err := jpeg.Decode(bytes.NewReader(objects.objects[key]))
	require.NoError(t, err)
	assert.Equal(t, 64, img.Bounds().Dx())
	assert.Equal(t, 32, img.Bounds().Dy())
}

func TestProfileServiceUploadRejectsInvalidImages(t *testing.T) {
	svc, _, objects := newProfileFixture()

	big := pngUpload(t, 10, 10)
	big.Size = 2 << 20
	_, err := svc.UploadImage(context.Background(), "2021001", big, RequestMeta{})
	assertAppError(t, err, appErrors.ErrValidation)

	text := dto.ProfileImageUpload{FileName: "me.png", Size: 5, Content: strings.NewReader("hello")}
	_, err = svc.UploadImage(context.Background(), "2021001", text, RequestMeta{})
	assertAppError(t, err, appErrors.ErrValidation)
	assert.Empty(t, objects.objects)
}

func TestProfileServiceUploadRemovesObjectOnFailure(t *testing.T) {
	svc, repo, objects := newProfileFixture()
	repo.imageErr = errors.New("db down")

	_, err := svc.UploadImage(context.Background(), "2021001", pngUpload(t, 20, 20), RequestMeta{})
	assertAppError(t, err, appErrors.ErrInternal)
	assert.Empty(t, objects.objects)
	assert.Equal(t, []string{"profile_images/2021001_1726826400000.jpg"}, objects.deleted)
}

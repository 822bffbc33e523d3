package auth

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nurseryfinder/nurseryfinder-backend/internal/nurseries"
	"github.com/nurseryfinder/nurseryfinder-backend/pkg/db"
	"github.com/nurseryfinder/nurseryfinder-backend/pkg/db/dbtest"
	"github.com/nurseryfinder/nurseryfinder-backend/pkg/db/models"
	"github.com/nurseryfinder/nurseryfinder-backend/pkg/enums"
	pkgerrors "github.com/nurseryfinder/nurseryfinder-backend/pkg/errors"
	"github.com/nurseryfinder/nurseryfinder-backend/pkg/outbox"
)

func newRegisterHarness(t *testing.T) (RegisterService, AdminRegisterService, *db.Client) {
	t.Helper()
	conn := dbtest.Open(t, t.Name())
	client := db.NewFromConn(conn)
	nurserySvc, err := nurseries.NewService(nurseries.ServiceParams{
		Repo:   nurseries.NewRepository(conn),
		DB:     client,
		Outbox: outbox.NewService(outbox.NewRepository(conn), nil),
	})
	require.NoError(t, err)
	reg, err := NewRegisterService(RegisterServiceParams{DB: client, Nurseries: nurserySvc, PasswordConfig: testPasswordCfg})
	require.NoError(t, err)
	adminReg, err := NewAdminRegisterService(AdminRegisterServiceParams{DB: client, PasswordConfig: testPasswordCfg})
	require.NoError(t, err)
	return reg, adminReg, client
}

func TestRegisterOwnerWithNursery(t *testing.T) {
	reg, _, client := newRegisterHarness(t)

	resp, err := reg.Register(context.Background(), RegisterRequest{
		FirstName: "Olive",
		LastName:  "Owner",
		Email:     "Olive@Example.com",
		Password:  "long-enough",
		Role:      enums.RoleNurseryOwner,
		Nursery:   &RegisterNurseryRequest{Name: "Olive Tree Nursery", Town: "Leeds", Postcode: "ls1 1aa"},
	})
	require.NoError(t, err)
	assert.Equal(t, "olive@example.com", resp.User.Email)
	require.NotNil(t, resp.Nursery)
	assert.Equal(t, "olive-tree-nursery", resp.Nursery.Slug)
	assert.Equal(t, resp.User.ID, resp.Nursery.OwnerID)
	assert.False(t, resp.Nursery.IsApproved)

	var count int64
	require.NoError(t, client.DB().Model(&models.Nursery{}).Count(&count).Error)
	assert.EqualValues(t, 1, count)
}

func TestRegisterRejections(t *testing.T) {
	reg, _, client := newRegisterHarness(t)
	ctx := context.Background()
	base := RegisterRequest{FirstName: "P", LastName: "Q", Email: "p@example.com", Password: "long-enough", Role: enums.RoleParent}

	_, err := reg.Register(ctx, base)
	require.NoError(t, err)

	_, err = reg.Register(ctx, base)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeConflict), "duplicate email: %v", err)

	admin := base
	admin.Email = "sneaky@example.com"
	admin.Role = enums.RoleAdmin
	_, err = reg.Register(ctx, admin)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation), "admin self-registration: %v", err)

	short := base
	short.Email = "short@example.com"
	short.Password = "short"
	_, err = reg.Register(ctx, short)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation), "short password: %v", err)

	parentWithNursery := base
	parentWithNursery.Email = "pn@example.com"
	parentWithNursery.Nursery = &RegisterNurseryRequest{Name: "X", Town: "Y", Postcode: "Z"}
	_, err = reg.Register(ctx, parentWithNursery)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation), "parent with nursery: %v", err)

	badNursery := base
	badNursery.Email = "owner2@example.com"
	badNursery.Role = enums.RoleNurseryOwner
	badNursery.Nursery = &RegisterNurseryRequest{Name: "  ", Town: "Y", Postcode: "Z"}
	_, err = reg.Register(ctx, badNursery)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation), "blank nursery name: %v", err)

	var users int64
	require.NoError(t, client.DB().Model(&models.User{}).Where("email = ?", "owner2@example.com").Count(&users).Error)
	assert.Zero(t, users, "failed nursery creation must roll back the user")
}

func TestAdminRegister(t *testing.T) {
	_, adminReg, _ := newRegisterHarness(t)

	user, err := adminReg.Register(context.Background(), AdminRegisterRequest{
		FirstName: "Ada",
		LastName:  "Admin",
		Email:     "ada@example.com",
		Password:  "admin-password",
	})
	require.NoError(t, err)
	assert.Equal(t, enums.RoleAdmin, user.Role)

	_, err = adminReg.Register(context.Background(), AdminRegisterRequest{FirstName: "A", LastName: "B", Email: "ada@example.com", Password: "admin-password"})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeConflict))
}

package data_test

import (
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/pitabwire/fluent/data"
)

func TestBaseModelHooks(t *testing.T) {
	model := &data.BaseModel{}
	db := &gorm.DB{Statement: &gorm.Statement{Context: t.Context()}}

	require.NoError(t, model.BeforeCreate(db))
	require.NotEmpty(t, model.GetID())
	require.True(t, model.ValidXID(model.GetID()))
	require.Equal(t, uint(1), model.GetVersion())
	require.False(t, model.CreatedAt.IsZero())

	id := model.GetID()
	require.NoError(t, model.BeforeUpdate(db))
	require.Equal(t, uint(2), model.GetVersion())

	require.NoError(t, model.BeforeSave(db))
	require.Equal(t, id, model.GetID(), "existing ids are kept")
	require.False(t, model.ValidXID("not-an-xid"))
}

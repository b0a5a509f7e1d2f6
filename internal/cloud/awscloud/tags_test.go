package awscloud_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fnothaft/cgcloud/internal/box"
	"github.com/fnothaft/cgcloud/internal/cloud/awscloud"
)

var _ box.TagStore = (*awscloud.InstanceTags)(nil)

func TestInstanceTags(t *testing.T) {
	m := newEc2Mock(t)
	a := awscloud.NewForTest(m, "us-west-1")
	tags := a.InstanceTags("i-1")

	_, ok, err := tags.Get(context.Background(), box.AdminUserTag)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, tags.Set(context.Background(), box.AdminUserTag, "admin"))
	value, ok, err := tags.Get(context.Background(), box.AdminUserTag)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "admin", value)
}

func TestInstanceTagsRetryUntilVisible(t *testing.T) {
	m := newEc2Mock(t)
	m.notFoundTagCalls = 2
	a := awscloud.NewForTest(m, "us-west-1")

	require.NoError(t, a.InstanceTags("i-1").Set(context.Background(), "cluster", "c1"))
	require.Equal(t, 3, m.calledFn["CreateTags"])
}

func TestInstanceTagsGiveUp(t *testing.T) {
	m := newEc2Mock(t)
	m.notFoundTagCalls = 10
	a := awscloud.NewForTest(m, "us-west-1")

	err := a.InstanceTags("i-1").Set(context.Background(), "cluster", "c1")
	require.Error(t, err)
	require.Equal(t, 3, m.calledFn["CreateTags"])
}

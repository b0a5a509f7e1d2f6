// Package box customizes freshly booted instances of a role: it resolves the
// account to log in as, runs the one-time first boot bootstrap and manages
// packages and init scripts.
package box

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/fnothaft/cgcloud/internal/remote"
)

// Instance is the provisioned machine a Box operates on.
type Instance struct {
	ID string
	// AdminUser is empty until read from or written to the admin_user tag.
	AdminUser  string
	Generation int
	BootCount  int
}

// Channel is what a Box needs from the remote host.
type Channel interface {
	remote.Runner
	remote.Uploader
}

type Box struct {
	Instance Instance

	role     Role
	family   family
	channel  Channel
	tags     TagStore
	username string
	log      *logrus.Entry
}

func New(role Role, instance Instance, channel Channel, tags TagStore) (*Box, error) {
	if err := role.Validate(); err != nil {
		return nil, err
	}
	fam, err := lookupFamily(role.Family)
	if err != nil {
		return nil, err
	}
	return &Box{
		Instance: instance,
		role:     role,
		family:   fam,
		channel:  channel,
		tags:     tags,
		log:      logrus.WithFields(logrus.Fields{"instance": instance.ID, "role": role.Name}),
	}, nil
}

func (b *Box) Role() Role {
	return b.role
}

// Username returns the account to log in as: the admin_user tag when the
// instance has one, the family default otherwise. The result is cached.
func (b *Box) Username(ctx context.Context) (string, error) {
	if b.username != "" {
		return b.username, nil
	}
	user, ok, err := b.tags.Get(ctx, AdminUserTag)
	if err != nil {
		return "", fmt.Errorf("cannot read tag %s of instance %s: %w", AdminUserTag, b.Instance.ID, err)
	}
	if ok && user != "" {
		b.Instance.AdminUser = user
	} else {
		user = b.family.defaultUsername(b.Instance.Generation)
	}
	b.username = user
	return user, nil
}

func (b *Box) setUsername(ctx context.Context, user string) error {
	if err := b.tags.Set(ctx, AdminUserTag, user); err != nil {
		return fmt.Errorf("cannot tag instance %s with %s=%s: %w", b.Instance.ID, AdminUserTag, user, err)
	}
	b.username = user
	b.Instance.AdminUser = user
	return nil
}

// OnInstanceReady is called once the instance passed its readiness check.
// On first boot of an instance still logged into as the privileged default
// account it creates the admin account and locks the privileged one. Any
// failure leaves the instance half configured; it is meant to be discarded.
func (b *Box) OnInstanceReady(ctx context.Context, firstBoot bool) error {
	b.Instance.BootCount++
	if !firstBoot {
		return nil
	}
	privileged := b.family.privilegedUsername()
	if privileged == "" {
		return nil
	}
	user, err := b.Username(ctx)
	if err != nil {
		return err
	}
	if user != privileged {
		b.log.Debugf("Logging in as %s, skipping first boot setup", user)
		return nil
	}
	b.log.Infof("First boot as %s, setting up the admin account", user)
	return b.family.bootstrap(ctx, b, user)
}

// Run runs line on the instance as the resolved user.
func (b *Box) Run(ctx context.Context, line string) (remote.Result, error) {
	user, err := b.Username(ctx)
	if err != nil {
		return remote.Result{}, err
	}
	return b.channel.Run(ctx, remote.Command{Line: line, User: user})
}

// Sudo runs line on the instance with root privileges.
func (b *Box) Sudo(ctx context.Context, line string) (remote.Result, error) {
	user, err := b.Username(ctx)
	if err != nil {
		return remote.Result{}, err
	}
	return b.channel.Run(ctx, remote.Command{Line: line, User: user, Sudo: user != "root"})
}

func (b *Box) put(ctx context.Context, path string, content []byte) error {
	user, err := b.Username(ctx)
	if err != nil {
		return err
	}
	return b.channel.Put(ctx, user, path, content, user != "root")
}

func (b *Box) SSHServiceName() string {
	return b.family.sshServiceName()
}

package box

import (
	"context"
	"fmt"
	"strings"

	"github.com/fnothaft/cgcloud/internal/image"
	"github.com/fnothaft/cgcloud/internal/prometheus"
	"github.com/fnothaft/cgcloud/internal/remote"
)

const (
	// AdminUser is the account created on first boot of CentOS boxes.
	AdminUser = "admin"

	// RightScaleOwnerID owns the CentOS AMIs published by RightScale.
	RightScaleOwnerID = "411009282317"

	rcLocal = "/etc/rc.d/rc.local"
)

// centos boxes boot off RightScale's CentOS AMIs. Those only ship a root
// account, so the first boot creates a password-less sudoer and disables
// root logins, imitating Canonical's Ubuntu images.
type centos struct{}

func (centos) defaultUsername(generation int) string {
	if generation == 0 {
		return "root"
	}
	return AdminUser
}

func (centos) privilegedUsername() string {
	return "root"
}

func (centos) baseImageQuery(role Role) image.Query {
	return image.Query{
		Family:      image.CentOS,
		OwnerID:     RightScaleOwnerID,
		NameGlob:    fmt.Sprintf("RightImage_CentOS_%s_x64*", role.Release),
		StorageType: image.StorageEBS,
	}
}

type bootstrapStep struct {
	name string
	line string
}

// createAdminSteps run as root, in order.
func createAdminSteps(admin string) []bootstrapStep {
	return []bootstrapStep{
		// don't clear the screen on logout
		{"bash-logout", `sed -i -r 's!^(/usr/bin/)?clear!# \0!' /etc/skel/.bash_logout ~/.bash_logout`},
		{"useradd", fmt.Sprintf("useradd -m -s /bin/bash %s", admin)},
		{"authorized-keys", propagateAuthorizedKeys(admin) + " && rm ~/.ssh/authorized_keys"},
		{"sudoers", fmt.Sprintf(`echo "%s  ALL=(ALL) NOPASSWD:ALL" >> /etc/sudoers`, admin)},
		{"lock-root", "passwd -l root"},
		// appended unconditionally, only the first boot gate prevents duplicates
		{"sshd-config", "echo PermitRootLogin no >> /etc/ssh/sshd_config"},
	}
}

// setupAdminSteps run as the admin account after it has been recorded.
func setupAdminSteps() []bootstrapStep {
	return []bootstrapStep{
		{"admin-path", `echo 'export PATH="/usr/local/sbin:/usr/sbin:/sbin:$PATH"' >> ~/.bash_profile`},
	}
}

func propagateAuthorizedKeys(user string) string {
	home := "~" + user
	return strings.Join([]string{
		fmt.Sprintf("install -d -m 700 -o %s -g %s %s/.ssh", user, user, home),
		fmt.Sprintf("install -m 600 -o %s -g %s ~/.ssh/authorized_keys %s/.ssh/authorized_keys", user, user, home),
	}, " && ")
}

func runSteps(ctx context.Context, b *Box, user string, steps []bootstrapStep) error {
	for _, step := range steps {
		b.log.Debugf("Bootstrap step %s", step.name)
		_, err := b.channel.Run(ctx, remote.Command{Line: step.line, User: user})
		prometheus.BootstrapStep(step.name, err)
		if err != nil {
			return fmt.Errorf("first boot step %s failed on instance %s: %w", step.name, b.Instance.ID, err)
		}
	}
	return nil
}

func (centos) bootstrap(ctx context.Context, b *Box, login string) error {
	if err := runSteps(ctx, b, login, createAdminSteps(AdminUser)); err != nil {
		return err
	}
	err := b.setUsername(ctx, AdminUser)
	prometheus.BootstrapStep("tag-admin-user", err)
	if err != nil {
		return err
	}
	return runSteps(ctx, b, AdminUser, setupAdminSteps())
}

func (centos) syncCommand() string {
	return "yum -y makecache"
}

func (centos) upgradeCommand() string {
	return "yum -y update"
}

func (centos) installCommand(packages []string) string {
	return "yum -y install " + strings.Join(packages, " ")
}

// registerInitScript installs the script as an executable and starts it from
// rc.local. The rc.local entry is only added once.
func (centos) registerInitScript(ctx context.Context, b *Box, name, script string) error {
	path := fmt.Sprintf("/usr/local/sbin/%s-init", name)
	if err := b.put(ctx, path, []byte(script)); err != nil {
		return err
	}
	line := fmt.Sprintf("chmod 755 %[1]s && chmod +x %[2]s && (grep -qxF %[1]s %[2]s || echo %[1]s >> %[2]s)", path, rcLocal)
	_, err := b.Sudo(ctx, line)
	return err
}

func (centos) sshServiceName() string {
	return "sshd"
}

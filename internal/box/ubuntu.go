package box

import (
	"context"
	"fmt"
	"strings"

	"github.com/fnothaft/cgcloud/internal/image"
)

// ubuntu boxes boot from Canonical's cloud images, which come with a
// password-less sudoer named ubuntu and no root login.
type ubuntu struct{}

const aptGet = "DEBIAN_FRONTEND=readline apt-get -q -y"

func (ubuntu) defaultUsername(int) string {
	return "ubuntu"
}

func (ubuntu) privilegedUsername() string {
	return ""
}

func (ubuntu) baseImageQuery(role Role) image.Query {
	return image.Query{
		Family:       image.Ubuntu,
		Release:      role.Release,
		Purpose:      "server",
		ReleaseType:  "release",
		StorageType:  image.StorageEBS,
		Architecture: image.ArchAMD64,
		Region:       role.Region,
		Hypervisor:   image.HypervisorParavirtual,
	}
}

func (ubuntu) bootstrap(context.Context, *Box, string) error {
	return nil
}

func (ubuntu) syncCommand() string {
	return aptGet + " update"
}

func (ubuntu) upgradeCommand() string {
	return aptGet + " upgrade"
}

func (ubuntu) installCommand(packages []string) string {
	return aptGet + " install " + strings.Join(packages, " ")
}

// registerInitScript installs an upstart job.
func (ubuntu) registerInitScript(ctx context.Context, b *Box, name, script string) error {
	return b.put(ctx, fmt.Sprintf("/etc/init/%s.conf", name), []byte(script))
}

func (ubuntu) sshServiceName() string {
	return "ssh"
}

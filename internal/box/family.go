package box

import (
	"context"
	"fmt"

	"github.com/fnothaft/cgcloud/internal/image"
)

// family holds what differs between the supported base images.
type family interface {
	// defaultUsername is the login account when the instance carries no
	// admin_user tag.
	defaultUsername(generation int) string
	// privilegedUsername is the account the bootstrapper replaces, or "" if
	// images of this family need no bootstrapping.
	privilegedUsername() string
	baseImageQuery(role Role) image.Query
	bootstrap(ctx context.Context, b *Box, login string) error

	packageManager
	initSystem
	sshServiceName() string
}

type packageManager interface {
	syncCommand() string
	upgradeCommand() string
	installCommand(packages []string) string
}

type initSystem interface {
	registerInitScript(ctx context.Context, b *Box, name, script string) error
}

var families = map[image.Family]family{
	image.CentOS: centos{},
	image.Ubuntu: ubuntu{},
}

func lookupFamily(f image.Family) (family, error) {
	fam, ok := families[f]
	if !ok {
		return nil, fmt.Errorf("unsupported image family: %q", f)
	}
	return fam, nil
}

package awscloud

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	ec2types "github.com/aws/aws-sdk-go-v2/service/ec2/types"
	"github.com/aws/smithy-go"
	"github.com/sirupsen/logrus"
)

func isErrorCode(err error, codes ...string) bool {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		for _, c := range codes {
			if apiErr.ErrorCode() == c {
				return true
			}
		}
	}
	return false
}

func isInvalidGroupNotFoundErr(err error) bool {
	return isErrorCode(err, "InvalidGroup.NotFound")
}

func isInvalidGroupDuplicateErr(err error) bool {
	return isErrorCode(err, "InvalidGroup.Duplicate")
}

func (a *AWS) securityGroupID(ctx context.Context, name string) (string, bool, error) {
	out, err := a.ec2.DescribeSecurityGroups(ctx, &ec2.DescribeSecurityGroupsInput{
		GroupNames: []string{name},
	})
	if isInvalidGroupNotFoundErr(err) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	if len(out.SecurityGroups) == 0 {
		return "", false, nil
	}
	return aws.ToString(out.SecurityGroups[0].GroupId), true, nil
}

// EnsureSSHSecurityGroup returns the ID of the security group with the given
// name, creating it with an ingress rule for SSH from cidr if it is missing.
func (a *AWS) EnsureSSHSecurityGroup(ctx context.Context, name, cidr string) (string, error) {
	id, ok, err := a.securityGroupID(ctx, name)
	if err != nil {
		return "", err
	}
	if ok {
		return id, nil
	}

	logrus.Infof("[AWS] Creating security group %s", name)
	cSGOutput, err := a.ec2.CreateSecurityGroup(ctx, &ec2.CreateSecurityGroupInput{
		Description: aws.String(fmt.Sprintf("SSH access for cgcloud boxes (%s)", name)),
		GroupName:   aws.String(name),
	})
	if isInvalidGroupDuplicateErr(err) {
		// someone else created it since we looked
		id, ok, derr := a.securityGroupID(ctx, name)
		if derr != nil {
			return "", derr
		}
		if !ok {
			return "", fmt.Errorf("security group %s reported as duplicate but not found: %w", name, err)
		}
		return id, nil
	}
	if err != nil {
		return "", fmt.Errorf("cannot create a new security group: %w", err)
	}
	sgID := aws.ToString(cSGOutput.GroupId)

	sgIngressOutput, err := a.ec2.AuthorizeSecurityGroupIngress(ctx, &ec2.AuthorizeSecurityGroupIngressInput{
		GroupId: aws.String(sgID),
		IpPermissions: []ec2types.IpPermission{
			{
				IpProtocol: aws.String("tcp"),
				FromPort:   aws.Int32(22),
				ToPort:     aws.Int32(22),
				IpRanges: []ec2types.IpRange{
					{
						CidrIp: aws.String(cidr),
					},
				},
			},
		},
	})
	if err != nil {
		return sgID, fmt.Errorf("cannot add a rule to the security group: %w", err)
	}
	if sgIngressOutput.Return != nil && !*sgIngressOutput.Return {
		return sgID, fmt.Errorf("unable to attach ingress rules to security group %s", sgID)
	}
	return sgID, nil
}

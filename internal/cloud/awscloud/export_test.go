package awscloud

var NewForTest = newForTest
var RegionFromIdentity = regionFromIdentity

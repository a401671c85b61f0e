// Package mount finds the mount point of the inserted camera card by asking
// lsblk for block devices and picking the first one mounted under the
// configured prefix.
package mount

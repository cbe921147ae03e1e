// Package reconcile makes the device's bundle list and the working copy
// agree in either direction: exporting bundle files and descriptors into the
// repository and pushing, or scanning the repository to rebuild the bundle
// list. Discovery is descriptor-first with a directory-shape fallback.
package reconcile

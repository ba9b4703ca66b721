// Command runtimeapi runs the runtime API subsystem and queries its state snapshot.
package main

func main() {
	Execute()
}

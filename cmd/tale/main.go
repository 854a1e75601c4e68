// Command tale plays and serves timed interactive stories.
package main

func main() {
	Execute()
}

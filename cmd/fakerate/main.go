// Command fakerate measures jet→tau fake rates, their data/simulation scale
// factors and their quark and gluon components.
package main

func main() {
	Execute()
}
